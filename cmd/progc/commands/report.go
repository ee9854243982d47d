package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
)

func printResults(out io.Writer, results []result, elapsed time.Duration) (failed int) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROGRAM\tPRIORITY\tSTATE\tSOURCE\tDETAIL")
	for _, r := range results {
		detail := ""
		if r.err != nil {
			failed++
			detail = firstLine(r.err.Error())
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.name, r.priority, r.state, humanize.Bytes(uint64(r.sourceBytes)), detail)
	}
	tw.Flush()

	rate := 0.0
	if s := elapsed.Seconds(); s > 0 {
		rate = float64(len(results)) / s
	}
	fmt.Fprintf(out, "%s programs, %s failed in %s (%s)\n",
		humanize.Comma(int64(len(results))), humanize.Comma(int64(failed)),
		elapsed.Round(time.Microsecond), humanize.SIWithDigits(rate, 2, "prog/s"))
	return failed
}

func printCacheStats(out io.Writer, s *session) {
	ps := s.platform.Stats()
	ms := s.memory.Stats()
	fmt.Fprintf(out, "stages: %s compiled, %s from cache; memory cache %s entries, %.0f%% hit rate\n",
		humanize.Comma(ps.Compiled-ps.CacheHits), humanize.Comma(ps.CacheHits),
		humanize.Comma(int64(ms.Len)), ms.HitRate*100)
	if s.disk != nil {
		if n, err := s.disk.Len(); err == nil {
			fmt.Fprintf(out, "disk cache: %s entries\n", humanize.Comma(int64(n)))
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
