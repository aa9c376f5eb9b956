// ndarch2npy flattens an ndArch template archive to a NumPy .npy
// matrix with one template spectrum per row, for quick inspection in
// Python without the FITS machinery.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sbinet/npyio"
	"github.com/sdss/redmonster/ndarch"
	"gonum.org/v1/gonum/mat"
)

func main() {
	out := flag.String("o", "", "output file (default: input name with .npy suffix)")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Println("usage: ndarch2npy [-o out.npy] ndArch-CLASS-VERSION.fits")
		os.Exit(1)
	}
	name := flag.Arg(0)
	if *out == "" {
		*out = strings.TrimSuffix(name, ".fits") + ".npy"
	}

	if err := convert(name, *out); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", name, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *out)
}

func convert(name, out string) error {
	a, err := ndarch.ReadArchive(name)
	if err != nil {
		return err
	}

	// Collapse all parameter axes into rows; wavelength pixels stay columns.
	nwave := a.Info.Nwave
	rows := a.Data.Len() / nwave
	m := mat.NewDense(rows, nwave, a.Data.Data())

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := npyio.Write(f, m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
