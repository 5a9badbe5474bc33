// Copyright 2024 Rob Marissen.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/524D/mzml"
	"github.com/spf13/cobra"
)

var (
	forceScan  bool
	withPeaks  bool
	maxRecords int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mzmlinfo",
		Short: "Inspect mzML mass spectrometry data files",
		Long: `mzmlinfo inspects mzML files using their byte-offset index,
so even very large files open instantly and only the records
asked for are read.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVar(&forceScan, "scan", false,
		"ignore the file's embedded index and rebuild it by scanning")

	infoCmd := &cobra.Command{
		Use:   "info <file.mzML>",
		Short: "Print file-level metadata and record counts",
		Args:  cobra.ExactArgs(1),
		RunE:  runInfo,
	}

	spectrumCmd := &cobra.Command{
		Use:   "spectrum <file.mzML> [id|position]...",
		Short: "Print spectra, by id or zero-based position",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSpectrum,
	}
	spectrumCmd.Flags().BoolVar(&withPeaks, "peaks", false, "decode and print the peak list")
	spectrumCmd.Flags().IntVar(&maxRecords, "max", 10, "limit when listing all spectra")

	chromatogramCmd := &cobra.Command{
		Use:   "chromatogram <file.mzML> [id]...",
		Short: "Print chromatograms, all of them by default",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runChromatogram,
	}
	chromatogramCmd.Flags().BoolVar(&withPeaks, "peaks", false, "decode and print the data points")

	rootCmd.AddCommand(infoCmd, spectrumCmd, chromatogramCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func open(path string) (*mzml.Reader, error) {
	return mzml.Open(path, &mzml.Options{ForceScan: forceScan})
}

func runInfo(cmd *cobra.Command, args []string) error {
	rd, err := open(args[0])
	if err != nil {
		return err
	}
	defer rd.Close()

	fmt.Printf("mzML version: %s\n", rd.Version())
	if v := rd.MSOntologyVersion(); v != "" {
		fmt.Printf("PSI-MS ontology: %s\n", v)
	}
	if run := rd.Run(); run.ID != "" {
		fmt.Printf("run: %s\n", run.ID)
		if t, err := run.StartTime(); err == nil {
			fmt.Printf("start time: %s\n", t)
		}
	}
	if fd := rd.FileDescription(); fd != nil {
		for _, sf := range fd.SourceFiles {
			fmt.Printf("source file: %s (%s)\n", sf.Name, sf.Location)
			if sum := sf.SHA1(); sum != "" {
				fmt.Printf("  sha1: %s\n", sum)
			}
		}
	}
	for _, sw := range rd.Software() {
		fmt.Printf("software: %s %s\n", sw.ID, sw.Version)
	}
	for _, ic := range rd.InstrumentConfigurations() {
		fmt.Printf("instrument configuration: %s (%d source(s), %d analyzer(s), %d detector(s))\n",
			ic.ID, len(ic.Sources), len(ic.Analyzers), len(ic.Detectors))
	}
	fmt.Printf("spectra: %d\n", rd.Spectra().Len())
	fmt.Printf("chromatograms: %d\n", rd.Chromatograms().Len())
	if rd.IndexFromScan() {
		fmt.Println("offset index rebuilt by scan")
	}
	return nil
}

func runSpectrum(cmd *cobra.Command, args []string) error {
	rd, err := open(args[0])
	if err != nil {
		return err
	}
	defer rd.Close()

	spectra := rd.Spectra()
	if len(args) == 1 {
		n := spectra.Len()
		if n > maxRecords {
			n = maxRecords
		}
		for i := 0; i < n; i++ {
			s, err := spectra.Get(i)
			if err != nil {
				return err
			}
			printSpectrum(s)
		}
		if spectra.Len() > n {
			fmt.Printf("... %d more\n", spectra.Len()-n)
		}
		return nil
	}

	for _, key := range args[1:] {
		var s *mzml.Spectrum
		if pos, convErr := strconv.Atoi(key); convErr == nil {
			s, err = spectra.Get(pos)
		} else {
			s, err = spectra.GetByID(key)
		}
		if err != nil {
			return err
		}
		printSpectrum(s)
	}
	return nil
}

func printSpectrum(s *mzml.Spectrum) {
	fmt.Printf("spectrum %q (ordinal %d): MS%d", s.ID, s.Ordinal, s.MSLevel())
	if rt, ok := s.RetentionTime(); ok {
		fmt.Printf(", RT %.2fs", rt)
	}
	switch s.Polarity() {
	case mzml.PolarityPositive:
		fmt.Printf(", positive")
	case mzml.PolarityNegative:
		fmt.Printf(", negative")
	}
	fmt.Printf(", %d array(s)\n", len(s.BinaryArrays))
	for _, p := range s.Precursors {
		for i := range p.SelectedIons {
			if mz, ok := p.SelectedIons[i].Mz(); ok {
				fmt.Printf("  precursor m/z %.4f", mz)
				if z, ok := p.SelectedIons[i].ChargeState(); ok {
					fmt.Printf(" (charge %d)", z)
				}
				fmt.Println()
			}
		}
	}
	if withPeaks {
		peaks, err := s.Peaks()
		if err != nil {
			fmt.Printf("  peaks: %v\n", err)
			return
		}
		for _, pk := range peaks {
			fmt.Printf("  %.6f\t%.2f\n", pk.Mz, pk.Intens)
		}
	}
}

func runChromatogram(cmd *cobra.Command, args []string) error {
	rd, err := open(args[0])
	if err != nil {
		return err
	}
	defer rd.Close()

	chroms := rd.Chromatograms()
	ids := args[1:]
	if len(ids) == 0 {
		ids = chroms.IDs()
	}
	for _, id := range ids {
		c, err := chroms.GetByID(id)
		if err != nil {
			return err
		}
		fmt.Printf("chromatogram %q", c.ID)
		if t := c.Type(); t != "" {
			fmt.Printf(" (%s)", t)
		}
		fmt.Printf(", %d array(s)\n", len(c.BinaryArrays))
		if withPeaks {
			times, err := c.Time()
			if err != nil {
				return err
			}
			intens, err := c.Intensity()
			if err != nil {
				return err
			}
			for i := range times {
				if i >= len(intens) {
					break
				}
				fmt.Printf("  %.3f\t%.2f\n", times[i], intens[i])
			}
		}
	}
	return nil
}
