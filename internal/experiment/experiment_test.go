package experiment_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/chsim/internal/config"
	"github.com/san-kum/chsim/internal/experiment"
	"github.com/san-kum/chsim/internal/metrics"
	"github.com/san-kum/chsim/internal/sim"
	"github.com/san-kum/chsim/internal/storage"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func smallParams() config.Params {
	p := config.DefaultParams()
	p.Rows, p.Cols = 16, 12
	p.Dt = 0.2
	p.Steps = 40
	p.Seed = 11
	return p
}

var _ = Describe("Experiment", func() {
	var (
		ctx   context.Context
		store *storage.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = storage.New(GinkgoT().TempDir())
		Expect(store.Init()).To(Succeed())
	})

	Context("with a valid parameter bundle", func() {
		It("evolves the field and lowers the free energy", func() {
			out, err := experiment.New(smallParams(), experiment.WithLogger(quiet)).Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Result.StepsTaken).To(Equal(40))
			Expect(out.Result.FinalEnergy).To(BeNumerically("<", out.Result.InitialEnergy))
			Expect(out.RunID).To(BeEmpty())
		})

		It("attaches the default metrics", func() {
			out, err := experiment.New(smallParams(), experiment.WithLogger(quiet)).Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			for _, name := range metrics.Default {
				Expect(out.Result.Metrics).To(HaveKey(name))
			}
			Expect(out.Result.Metrics["mass_drift"]).To(BeNumerically("<", 1e-12))
		})

		It("is reproducible for a fixed seed regardless of worker count", func() {
			serial := smallParams()
			parallel := smallParams()
			serial.Cols, parallel.Cols = 32, 32
			parallel.Workers = 4

			a, err := experiment.New(serial, experiment.WithLogger(quiet)).Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			b, err := experiment.New(parallel, experiment.WithLogger(quiet)).Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(b.Result.Final.Values()).To(Equal(a.Result.Final.Values()))
		})

		It("picks a seed when none is given", func() {
			p := smallParams()
			p.Seed = 0
			p.Steps = 1
			out, err := experiment.New(p, experiment.WithLogger(quiet)).Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Params.Seed).NotTo(BeZero())
		})

		It("writes a complete run directory", func() {
			p := smallParams()
			p.Output = "stored"
			out, err := experiment.New(p, experiment.WithStore(store), experiment.WithLogger(quiet)).Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.RunID).To(Equal("stored"))

			meta, err := store.Load("stored")
			Expect(err).NotTo(HaveOccurred())
			Expect(meta.Params.Seed).To(Equal(int64(11)))
			Expect(meta.FinalEnergy).To(Equal(out.Result.FinalEnergy))

			points, err := store.LoadEnergy("stored")
			Expect(err).NotTo(HaveOccurred())
			Expect(points).To(HaveLen(41))

			Expect(filepath.Join(store.Dir("stored"), storage.FinalFile)).To(BeAnExistingFile())
		})

		It("forwards every frame to extra observers", func() {
			var steps []int
			obs := sim.ObserverFunc(func(f *sim.Frame) error {
				steps = append(steps, f.Step)
				return nil
			})
			_, err := experiment.New(smallParams(), experiment.WithObserver(obs), experiment.WithLogger(quiet)).Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(steps).To(HaveLen(41))
			Expect(steps[0]).To(Equal(0))
			Expect(steps[40]).To(Equal(40))
		})
	})

	Context("with invalid input", func() {
		It("rejects bad parameters before touching the store", func() {
			p := smallParams()
			p.Rows = 0
			p.Output = "never"
			_, err := experiment.New(p, experiment.WithStore(store), experiment.WithLogger(quiet)).Run(ctx)
			Expect(err).To(MatchError(config.ErrInvalidParams))
			_, statErr := os.Stat(store.Dir("never"))
			Expect(os.IsNotExist(statErr)).To(BeTrue())
		})

		It("rejects unknown metrics", func() {
			p := smallParams()
			p.Metrics = []string{"entropy"}
			_, err := experiment.New(p, experiment.WithLogger(quiet)).Run(ctx)
			Expect(err).To(MatchError(metrics.ErrUnknownMetric))
		})

		It("stops on NaN when validation is on", func() {
			p := smallParams()
			p.Dt = 1e6
			_, err := experiment.New(p, experiment.WithStateValidation(), experiment.WithLogger(quiet)).Run(ctx)
			Expect(err).To(MatchError(sim.ErrNonFinite))
		})

		It("honours cancellation", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := experiment.New(smallParams(), experiment.WithLogger(quiet)).Run(cctx)
			Expect(err).To(MatchError(sim.ErrCanceled))
		})
	})
})

var _ = Describe("RunEnsemble", func() {
	It("runs one member per seed in seed order", func() {
		store := storage.New(GinkgoT().TempDir())
		p := smallParams()
		p.Output = "ens"
		seeds := []int64{3, 1, 2}

		outs, err := experiment.RunEnsemble(context.Background(), p, seeds, 2,
			experiment.WithStore(store), experiment.WithLogger(quiet))
		Expect(err).NotTo(HaveOccurred())
		Expect(outs).To(HaveLen(3))
		for i, out := range outs {
			Expect(out.Params.Seed).To(Equal(seeds[i]))
		}
		Expect(outs[0].RunID).To(Equal("ens_seed3"))

		runs, err := store.List()
		Expect(err).NotTo(HaveOccurred())
		Expect(runs).To(HaveLen(3))
	})

	It("gives different fields for different seeds", func() {
		outs, err := experiment.RunEnsemble(context.Background(), smallParams(), []int64{5, 6}, 0,
			experiment.WithLogger(quiet))
		Expect(err).NotTo(HaveOccurred())
		Expect(outs[0].Result.Final.Values()).NotTo(Equal(outs[1].Result.Final.Values()))
	})

	It("reports the failing member", func() {
		p := smallParams()
		p.Metrics = []string{"bogus"}
		_, err := experiment.RunEnsemble(context.Background(), p, []int64{1}, 1, experiment.WithLogger(quiet))
		Expect(err).To(MatchError(ContainSubstring("seed 1")))
	})
})
