package atmo

import (
	"fmt"
	"io"
)

// Dump writes a tab-separated altitude/temperature/pressure/refractive-index
// table, one row per step meters up to hMax. Backs the atm-data subcommand.
func (p *Profile) Dump(w io.Writer, hMin, hMax, step float64) error {
	if step <= 0 {
		return profileErrorf("dump step must be positive, got %g", step)
	}
	if _, err := fmt.Fprintln(w, "altitude\ttemperature\tpressure\trefractive_index"); err != nil {
		return err
	}
	for h := hMin; h <= hMax; h += step {
		t, press, n := p.Sample(h)
		if _, err := fmt.Fprintf(w, "%.1f\t%.3f\t%.2f\t%.9f\n", h, t, press, n); err != nil {
			return err
		}
	}
	return nil
}
