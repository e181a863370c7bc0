// Command extract-reference pulls strong peaks out of a raw reference card
// file and writes them as a normalized reference_<phase>.txt file that the
// analysis pipeline's extracted-reference loader understands.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/Plutor-05/xrd-figure/internal/refcat"
)

var (
	cardFile  = flag.String("card", "", "Raw reference card file to extract from")
	symbol    = flag.String("symbol", refcat.ExtractSymbols[0], "Display symbol for the phase")
	threshold = flag.Float64("threshold", 40, "Minimum relative intensity to keep a peak")
	phase     = flag.String("phase", "", "Phase name (default: cleaned card file name)")
	outDir    = flag.String("out", ".", "Directory to write the reference file into")
)

func main() {
	flag.Parse()

	if *cardFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: extract-reference -card <file> [-symbol ♠] [-threshold 40]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	name := *phase
	if name == "" {
		name = refcat.CleanPhaseName(*cardFile)
	}

	angles, err := refcat.ExtractCardPeaks(*cardFile, *threshold)
	if err != nil {
		log.Fatalf("Extraction failed: %v", err)
	}
	if len(angles) == 0 {
		log.Fatalf("No peaks with relative intensity >= %g in %s", *threshold, *cardFile)
	}

	path, err := refcat.WriteReferenceFile(*outDir, name, *symbol, *threshold, angles)
	if err != nil {
		log.Fatalf("Writing reference file failed: %v", err)
	}
	fmt.Printf("Extracted %d peaks for phase %q into %s\n", len(angles), name, path)
}
