// Command loudinfo runs synthesized test programs through the
// mastering engine and prints the resulting loudness, true-peak, and
// limiter measurements.
//
// Usage:
//
//	loudinfo [flags] [program-name ...]
//
// Without arguments it measures all known programs.
//
// Examples:
//
//	loudinfo sine
//	loudinfo -amp 0.25 -freq 997 sine noise
//	loudinfo -ceiling -3 -dur 5 burst
//	loudinfo -list
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/jaywtf82/cno-voidline-sub002/dsp/core"
	"github.com/jaywtf82/cno-voidline-sub002/dsp/signal"
	"github.com/jaywtf82/cno-voidline-sub002/mastering"
)

type programEntry struct {
	name     string
	generate func(g *signal.Generator, amp, freq float64, samples int) ([]float64, error)
}

var registry = []programEntry{
	{"sine", func(g *signal.Generator, amp, freq float64, samples int) ([]float64, error) {
		return g.Sine(freq, amp, samples)
	}},
	{"noise", func(g *signal.Generator, amp, _ float64, samples int) ([]float64, error) {
		return g.WhiteNoise(amp, samples)
	}},
	{"burst", func(g *signal.Generator, amp, freq float64, samples int) ([]float64, error) {
		return g.Burst(freq, amp, int(g.Config().SampleRate/2), samples)
	}},
}

func main() {
	rate := flag.Float64("rate", 48000, "sample rate in Hz")
	dur := flag.Float64("dur", 10, "program duration in seconds")
	amp := flag.Float64("amp", 0.5, "program peak amplitude, linear")
	freq := flag.Float64("freq", 997, "tone frequency in Hz")
	ceiling := flag.Float64("ceiling", -1, "limiter ceiling in dBFS")
	lookahead := flag.Float64("lookahead", 5, "limiter lookahead in ms (1..10)")
	list := flag.Bool("list", false, "list available program names")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: loudinfo [flags] [program-name ...]\n\n")
		fmt.Fprintf(os.Stderr, "Measures synthesized test programs with the mastering engine.\n")
		fmt.Fprintf(os.Stderr, "Without arguments, measures all programs.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  loudinfo sine noise\n")
		fmt.Fprintf(os.Stderr, "  loudinfo -amp 0.25 -freq 997 sine\n")
		fmt.Fprintf(os.Stderr, "  loudinfo -list\n")
	}
	flag.Parse()

	if *list {
		printList()
		return
	}

	names := flag.Args()
	if len(names) == 0 {
		for _, e := range registry {
			names = append(names, e.name)
		}
	}

	entries := resolveEntries(names)
	if len(entries) == 0 {
		fmt.Fprintf(os.Stderr, "error: no matching programs\n")
		os.Exit(1)
	}

	if err := printMeasurements(entries, *rate, *dur, *amp, *freq, *ceiling, *lookahead); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printList() {
	names := make([]string, len(registry))
	for i, e := range registry {
		names[i] = e.name
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Println(n)
	}
}

func resolveEntries(names []string) []programEntry {
	byName := make(map[string]programEntry, len(registry))
	for _, e := range registry {
		byName[e.name] = e
	}

	var result []programEntry
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		e, ok := byName[name]
		if !ok {
			fmt.Fprintf(os.Stderr, "warning: unknown program %q (use -list to see available)\n", name)
			continue
		}
		result = append(result, e)
	}

	return result
}

func printMeasurements(entries []programEntry, rate, dur, amp, freq, ceiling, lookahead float64) error {
	gen := signal.NewGenerator([]core.ProcessorOption{core.WithSampleRate(rate)})
	samples := int(dur * rate)

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Program\tMomentary\tShort-term\tIntegrated\tLRA\tTrue Peak\tLimiter GR\n")
	fmt.Fprintf(tw, "\t[LUFS]\t[LUFS]\t[LUFS]\t[LU]\t[dBTP]\t[dB]\n")
	fmt.Fprintf(tw, "-------\t---------\t----------\t----------\t---\t---------\t----------\n")

	for _, e := range entries {
		program, err := e.generate(gen, amp, freq, samples)
		if err != nil {
			return err
		}

		sink := mastering.NewLatestSink()
		eng, err := mastering.New(rate, sink)
		if err != nil {
			return err
		}

		if err := eng.UpdateLimiter(ceiling, 1, 100); err != nil {
			return err
		}

		if err := eng.SetLookahead(lookahead); err != nil {
			return err
		}

		if err := run(eng, program); err != nil {
			return err
		}

		loud, ok := sink.Latest(mastering.KindLoudness)
		if !ok {
			return fmt.Errorf("no loudness message for %s", e.name)
		}

		lim, ok := sink.Latest(mastering.KindLimiter)
		if !ok {
			return fmt.Errorf("no limiter message for %s", e.name)
		}

		lm := loud.(mastering.LoudnessMessage)
		gr := lim.(mastering.LimiterMessage)

		fmt.Fprintf(tw, "%s\t%.1f\t%.1f\t%.1f\t%.1f\t%.2f\t%.2f\n",
			e.name,
			lm.Momentary,
			lm.ShortTerm,
			lm.Integrated,
			lm.Range,
			lm.TruePeakDB,
			gr.GainReductionDB,
		)
	}

	return tw.Flush()
}

func run(eng *mastering.Engine, program []float64) error {
	n := eng.BlockSize()
	out := [][]float64{make([]float64, n), make([]float64, n)}

	for off := 0; off+n <= len(program); off += n {
		in := [][]float64{program[off : off+n], program[off : off+n]}
		if err := eng.ProcessBlock(in, out); err != nil {
			return err
		}
	}

	return nil
}
