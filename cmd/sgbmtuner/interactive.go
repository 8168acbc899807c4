package main

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"strconv"
	"strings"
	"time"

	"sgbmtuner/pkg/imageio"
	"sgbmtuner/pkg/stereo"
	"sgbmtuner/pkg/tuner"
)

// output writes every new display map to the same path
type output struct {
	path          string
	rgb           bool
	previewWidth  int
	previewHeight int
}

func (o *output) write(res *tuner.Result) error {
	if res == nil {
		return nil
	}
	var img image.Image = res.Map.Gray()
	if o.rgb {
		img = res.Map.RGBA()
	}
	img = imageio.Fit(img, o.previewWidth, o.previewHeight)
	if err := imageio.SaveImage(o.path, img); err != nil {
		return fmt.Errorf("failed to save display map: %w", err)
	}
	return nil
}

func report(w io.Writer, res *tuner.Result) {
	if res == nil {
		return
	}
	fmt.Fprintf(w, "Disparity computed in %v with %s\n", res.Elapsed.Round(time.Millisecond), res.Params)
	fmt.Fprintf(w, "  %s\n", res.Stats)
	if res.Map.Degenerate {
		fmt.Fprintln(w, "  disparity field has no value range, display map is blank")
	}
}

// runInteractive applies "name value" lines as parameter-change
// notifications until EOF or "quit". Every accepted change recomputes the
// map and hands it to save. Rejected values are reported and the loop goes on.
func runInteractive(r io.Reader, w io.Writer, s *tuner.Session, save func(*tuner.Result) error) error {
	scanner := bufio.NewScanner(r)
	for {
		fmt.Fprint(w, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(w)
			return scanner.Err()
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch strings.ToLower(fields[0]) {
		case "quit", "exit":
			return nil
		case "params":
			p := s.Params()
			for _, name := range stereo.ParameterNames() {
				v, _ := p.Get(name)
				fmt.Fprintf(w, "  %-18s %d\n", name, v)
			}
			continue
		}

		if len(fields) != 2 {
			fmt.Fprintf(w, "expected \"name value\", got %q\n", scanner.Text())
			continue
		}
		value, err := strconv.Atoi(fields[1])
		if err != nil {
			fmt.Fprintf(w, "invalid value %q\n", fields[1])
			continue
		}
		res, err := s.SetParam(fields[0], value)
		if err != nil {
			fmt.Fprintf(w, "error: %v\n", err)
			continue
		}
		if err := save(res); err != nil {
			return err
		}
		report(w, res)
	}
}
