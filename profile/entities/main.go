// Profiling:
// go build ./profile/entities
// go tool pprof -http=":8000" -nodefraction=0.001 ./entities mem.pprof

package main

import (
	"github.com/edwinsyarief/kura"
	"github.com/pkg/profile"
)

type comp1 struct {
	V int64
	W int64
}

type team uint8

func main() {
	count := 50
	iters := 100
	entities := 1000
	p := profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook)
	run(count, iters, entities)
	p.Stop()
}

func run(rounds, iters, numEntities int) {
	for range rounds {
		w := kura.NewWorld(kura.WithInitialCapacity(numEntities))
		red := kura.NewBuilder[comp1](w, kura.Tag(w, team(1)))
		blue := kura.NewBuilder[comp1](w, kura.Tag(w, team(2)))
		query := kura.NewFilter[comp1](w)

		for range iters {
			red.NewEntitiesWithValueSet(numEntities, comp1{V: 1, W: 2})
			blue.NewEntities(numEntities)
			query.Reset()
			for query.Next() {
				c := query.Get()
				c.V += c.W
			}
		}
	}
}
