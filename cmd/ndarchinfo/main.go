// ndarchinfo prints a summary of one or more ndArch template archives.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/sdss/redmonster/ndarch"
)

func main() {
	verbose := flag.Bool("v", false, "dump the full decoded metadata")
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Println("usage: ndarchinfo [-v] ndArch-CLASS-VERSION.fits ...")
		os.Exit(1)
	}

	status := 0
	for _, name := range flag.Args() {
		if err := describe(name, *verbose); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %s\n", name, err)
			status = 1
		}
	}
	os.Exit(status)
}

func describe(name string, verbose bool) error {
	a, err := ndarch.ReadArchive(name)
	if err != nil {
		return err
	}
	inf := a.Info

	fmt.Printf("%s:\n", name)
	fmt.Printf("  class %s, version %s\n", inf.Class, inf.Version)
	fmt.Printf("  shape %v (%d parameter axes, %d wavelength pixels)\n",
		a.Data.Shape(), a.NPar(), inf.Nwave)
	fmt.Printf("  loglam grid: coeff0=%g coeff1=%g\n", inf.Coeff0, inf.Coeff1)
	if inf.FluxUnit != "" {
		fmt.Printf("  flux unit: %s\n", inf.FluxUnit)
	}
	for i, b := range a.Baselines {
		pname, unit := inf.ParNames[i], inf.ParUnits[i]
		if pname == "" {
			pname = fmt.Sprintf("par%d", i)
		}
		if unit != "" {
			unit = " " + unit
		}
		switch {
		case len(b.Values) > 0:
			fmt.Printf("  axis %d (%s, %s): %d pixels, %g .. %g%s\n",
				i, pname, b.Kind, b.Len(), b.Values[0], b.Values[len(b.Values)-1], unit)
		case len(b.Labels) > 0:
			fmt.Printf("  axis %d (%s, %s): %d pixels, %q .. %q\n",
				i, pname, b.Kind, b.Len(), b.Labels[0], b.Labels[len(b.Labels)-1])
		default:
			fmt.Printf("  axis %d (%s, %s): empty\n", i, pname, b.Kind)
		}
	}
	if verbose {
		fmt.Print(spew.Sdump(inf))
	}
	return nil
}
