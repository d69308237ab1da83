// Package loader reads CLRP benchmark instances in the Prodhon/Tuzun .dat
// layout: customer and depot counts, coordinates, vehicle capacity, depot
// capacities, demands, opening costs and the per-route setup cost, one value
// group per line block.
package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"clrpd/internal/clrp"
)

// ErrFormat marks a malformed instance file.
var ErrFormat = errors.New("malformed instance file")

// ParseFile reads one .dat file. The instance is named after the path
// relative to root without its extension; pass an empty root to use the
// bare file name.
func ParseFile(root, path string) (*clrp.Instance, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if root != "" {
		if rel, err := filepath.Rel(root, path); err == nil {
			name = strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel))
		}
	}
	inst, err := Parse(name, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return inst, nil
}

// Parse reads one instance from r.
func Parse(name string, r io.Reader) (*clrp.Instance, error) {
	fields, err := scanFields(r)
	if err != nil {
		return nil, err
	}
	p := &parser{fields: fields}

	nCustomers, err := p.intVal("customer count")
	if err != nil {
		return nil, err
	}
	nDepots, err := p.intVal("depot count")
	if err != nil {
		return nil, err
	}
	if nCustomers <= 0 || nDepots <= 0 {
		return nil, fmt.Errorf("%w: non-positive counts %d/%d", ErrFormat, nCustomers, nDepots)
	}

	depots := make([]clrp.Facility, nDepots)
	for i := range depots {
		x, y, err := p.pair("depot coordinates")
		if err != nil {
			return nil, err
		}
		depots[i] = clrp.Facility{ID: fmt.Sprintf("D%d", i+1), X: x, Y: y}
	}
	customers := make([]clrp.Customer, nCustomers)
	for i := range customers {
		x, y, err := p.pair("customer coordinates")
		if err != nil {
			return nil, err
		}
		customers[i] = clrp.Customer{ID: fmt.Sprintf("C%d", i+1), X: x, Y: y}
	}

	vehicleCap, err := p.floatVal("vehicle capacity")
	if err != nil {
		return nil, err
	}
	for i := range depots {
		if depots[i].Capacity, err = p.floatVal("depot capacity"); err != nil {
			return nil, err
		}
	}
	for i := range customers {
		if customers[i].Demand, err = p.floatVal("customer demand"); err != nil {
			return nil, err
		}
	}
	for i := range depots {
		if depots[i].OpeningCost, err = p.floatVal("depot opening cost"); err != nil {
			return nil, err
		}
	}
	routeSetup, err := p.floatVal("route setup cost")
	if err != nil {
		return nil, err
	}
	// trailing terminator flag is optional and ignored

	fleet := clrp.Fleet{
		Secondary: clrp.VehicleClass{Capacity: vehicleCap, FixedCost: routeSetup, CostPerDist: 1},
	}
	return clrp.NewInstance(name, depots, nil, customers, fleet)
}

// LoadDir walks root and parses every .dat file, keyed by instance name.
// Subdirectories group benchmark sets, e.g. prodhon/coord20-5-1.
func LoadDir(root string) (map[string]*clrp.Instance, error) {
	out := map[string]*clrp.Instance{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".dat") {
			return nil
		}
		inst, err := ParseFile(root, path)
		if err != nil {
			return err
		}
		out[inst.Name] = inst
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func scanFields(r io.Reader) ([]string, error) {
	var fields []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		fields = append(fields, strings.Fields(sc.Text())...)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return fields, nil
}

type parser struct {
	fields []string
	pos    int
}

func (p *parser) next(what string) (string, error) {
	if p.pos >= len(p.fields) {
		return "", fmt.Errorf("%w: unexpected end of file reading %s", ErrFormat, what)
	}
	v := p.fields[p.pos]
	p.pos++
	return v, nil
}

func (p *parser) intVal(what string) (int, error) {
	s, err := p.next(what)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %q is not an integer", ErrFormat, what, s)
	}
	return v, nil
}

func (p *parser) floatVal(what string) (float64, error) {
	s, err := p.next(what)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %q is not a number", ErrFormat, what, s)
	}
	return v, nil
}

func (p *parser) pair(what string) (x, y float64, err error) {
	if x, err = p.floatVal(what); err != nil {
		return 0, 0, err
	}
	if y, err = p.floatVal(what); err != nil {
		return 0, 0, err
	}
	return x, y, nil
}
