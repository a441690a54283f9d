package main

import (
	"fmt"
	"io"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/spf13/cobra"
	"github.com/vkngwrapper/vessel/memutils"
	"github.com/vkngwrapper/vessel/sequence"
	"github.com/vkngwrapper/vessel/storage"
	"golang.org/x/exp/slog"
)

// newRootCommand creates the `vesselstat` command tree, which drives sequences through their growth
// and resize paths and reports what the allocator saw.
func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "vesselstat",
		Short:         "Exercise vessel sequences and report allocator statistics",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().Bool("verbose", false, "log every block acquired and released")
	root.PersistentFlags().Int("max-bytes", 0, "allocator byte limit (0 for the process default, negative for no limit)")

	root.AddCommand(newGrowthCommand(), newScenarioCommand())
	return root
}

func newAllocator(cmd *cobra.Command) *storage.Allocator {
	verbose, _ := cmd.Flags().GetBool("verbose")
	maxBytes, _ := cmd.Flags().GetInt("max-bytes")

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.HandlerOptions{Level: level}.NewTextHandler(cmd.ErrOrStderr()))

	return storage.NewAllocator(storage.AllocatorCreateOptions{
		Logger:   logger,
		MaxBytes: maxBytes,
	})
}

type growthParams struct {
	stdout   io.Writer
	count    int
	reserve  int
	detailed bool
}

func newGrowthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "growth",
		Short: "Append elements one at a time and report reallocations and relocations",
		Example: `  # Append a million elements
  vesselstat growth --count 1000000

  # Reserve up front and compare
  vesselstat growth --count 1000000 --reserve 1000000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("count")
			reserve, _ := cmd.Flags().GetInt("reserve")
			detailed, _ := cmd.Flags().GetBool("detailed")

			return runGrowth(newAllocator(cmd), growthParams{
				stdout:   cmd.OutOrStdout(),
				count:    count,
				reserve:  reserve,
				detailed: detailed,
			})
		},
	}
	cmd.Flags().Int("count", 1024, "number of elements to append")
	cmd.Flags().Int("reserve", 0, "capacity to reserve before appending")
	cmd.Flags().Bool("detailed", false, "list live blocks and the sequence's block usage")

	return cmd
}

func runGrowth(allocator *storage.Allocator, p growthParams) error {
	err := memutils.CheckNonNegative(p.count, "count")
	if err != nil {
		return err
	}

	relocations := 0
	s, err := sequence.New[int](sequence.CreateOptions[int]{
		Allocator: allocator,
		Traits: sequence.FuncTraits[int]{
			MoveFunc: func(dst, src *int) error {
				relocations++
				*dst = *src
				return nil
			},
		},
	})
	if err != nil {
		return err
	}
	defer s.Destroy()

	s.Reserve(p.reserve)
	for i := 0; i < p.count; i++ {
		err = s.PushBack(i)
		if err != nil {
			return err
		}
	}

	var stats memutils.DetailedStatistics
	stats.Clear()
	allocator.CalculateStatistics(&stats)

	fmt.Fprintf(p.stdout, "length=%d capacity=%d reallocations=%d relocations=%d\n",
		s.Len(), s.Cap(), stats.TotalAllocations, relocations)
	fmt.Fprintln(p.stdout, allocator.BuildStatsString(p.detailed))

	if p.detailed {
		writer := jwriter.NewWriter()
		obj := writer.Object()
		sequenceObj := obj.Name("Sequence").Object()
		s.BlockJsonData(sequenceObj)
		sequenceObj.End()
		obj.End()
		fmt.Fprintln(p.stdout, string(writer.Bytes()))
	}

	return nil
}

func newScenarioCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scenario",
		Short: "Push 0..4, shrink to 2 and fill back to 4 with nines, printing each step",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			allocator := newAllocator(cmd)
			err := runScenario(allocator, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			return allocator.Destroy()
		},
	}
}

func runScenario(allocator *storage.Allocator, stdout io.Writer) error {
	s, err := sequence.New[int](sequence.CreateOptions[int]{Allocator: allocator})
	if err != nil {
		return err
	}
	defer s.Destroy()

	report := func(step string) {
		fmt.Fprintf(stdout, "%-14s size=%d capacity=%d contents=%v\n", step, s.Len(), s.Cap(), s.Slice())
	}

	for i := 0; i < 5; i++ {
		err = s.PushBack(i)
		if err != nil {
			return err
		}
	}
	report("push 0..4")

	err = s.Resize(2)
	if err != nil {
		return err
	}
	report("resize 2")

	err = s.ResizeFill(4, 9)
	if err != nil {
		return err
	}
	report("resize 4, 9")

	return nil
}
