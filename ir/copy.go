package ir

import (
	"github.com/mitchellh/copystructure"
	"github.com/pkg/errors"
)

// Copy returns a deep copy of a that shares nothing mutable with it. The
// copy keeps instance handles, so offset tables computed for a apply to it.
func (a *Accelerator) Copy(name string) (*Accelerator, error) {
	raw, err := copystructure.Copy(a.instances)
	if err != nil {
		return nil, errors.Wrapf(err, "copy instances of %s", a.Name)
	}
	insts, _ := raw.([]*Instance)

	raw, err = copystructure.Copy(a.edges)
	if err != nil {
		return nil, errors.Wrapf(err, "copy edges of %s", a.Name)
	}
	edges, _ := raw.([]*Edge)

	res := &Accelerator{
		Name:      name,
		catalog:   a.catalog,
		owner:     NoDecl,
		instances: insts,
		order:     append([]InstanceID(nil), a.order...),
		edges:     edges,
		statics:   a.statics.clone(),
		store:     a.store.clone(),
	}
	return res, nil
}

func (t *StaticTable) clone() *StaticTable {
	res := NewStaticTable()
	for _, k := range t.Keys() {
		d, _ := t.Get(k)
		d.Configs = append([]Wire(nil), d.Configs...)
		res.InsertIfNotExist(k, d)
	}
	return res
}

func (s store) clone() store {
	var res store
	for k := range s.ints {
		res.ints[k] = append([]int(nil), s.ints[k]...)
	}
	res.extra = append([]byte(nil), s.extra...)
	res.storedOutput = append([]int(nil), s.storedOutput...)
	res.static = append([]int(nil), s.static...)
	return res
}
