// Profiling:
// go build ./profile/reconstruct
// ./reconstruct
// go tool pprof -http=":8000" -nodefraction=0.001 ./reconstruct cpu.pprof

package main

import (
	"bytes"

	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"

	"github.com/edwinsyarief/kura"
	"github.com/edwinsyarief/kura/codec/msgpack"
)

type position struct {
	X, Y float32
}

type team uint8

func main() {
	rounds := 200
	entities := 10000
	stream := build(entities)
	p := profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	run(rounds, stream)
	p.Stop()
}

func quiet() kura.Option {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	return kura.WithLogger(log.WithField("component", "kura"))
}

func register(w *kura.World) {
	kura.RegisterComponent[position](w.Types(), "position")
	kura.RegisterTag[team](w.Types(), "team")
}

func build(n int) []byte {
	w := kura.NewWorld(quiet())
	register(w)
	for t := range 4 {
		kura.NewBuilder[position](w, kura.Tag(w, team(t))).NewEntitiesWithValueSet(n/4, position{X: 1, Y: 2})
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := kura.Serialize(w, enc); err != nil {
		panic(err)
	}
	if err := enc.Flush(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func run(rounds int, stream []byte) {
	for range rounds {
		w := kura.NewWorld(quiet())
		register(w)
		if err := kura.Deserialize(w, msgpack.NewDecoder(bytes.NewReader(stream))); err != nil {
			panic(err)
		}
	}
}
