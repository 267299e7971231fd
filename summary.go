package kura

import (
	"fmt"
	"io"
	"reflect"
)

// WriteSummary writes a deterministic, human readable outline of w's
// storage: archetypes, chunksets with their tag values, and chunk fill.
func WriteSummary(out io.Writer, w *World) error {
	archs := w.storage.archetypes
	if _, err := fmt.Fprintf(out, "archetypes: %d\nentities: %d\n", len(archs), w.Len()); err != nil {
		return err
	}
	for _, a := range archs {
		if _, err := fmt.Fprintf(out, "archetype %d: %s capacity=%d\n", a.index, a.desc, a.capacity); err != nil {
			return err
		}
		for si, s := range a.chunksets {
			if _, err := fmt.Fprintf(out, "  chunkset %d:%s entities=%d chunks=%d\n", si, tagLabel(a.desc, s), s.Len(), len(s.chunks)); err != nil {
				return err
			}
			for ci, c := range s.chunks {
				if _, err := fmt.Fprintf(out, "    chunk %d: %d/%d\n", ci, c.Len(), c.Capacity()); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func tagLabel(desc *ArchetypeDescription, s *Chunkset) string {
	label := ""
	for i, tt := range desc.tags {
		v := reflect.NewAt(tt.Meta.typ, s.Tag(i)).Elem().Interface()
		label += fmt.Sprintf(" %s=%v", tt.Meta.name, v)
	}
	return label
}
