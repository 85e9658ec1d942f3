// Profiling:
// go build ./profile/entities
// ./entities [scenario.toml]
// go tool pprof -http=":8000" -nodefraction=0.001 ./entities mem.pprof

package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/edwinsyarief/bento"
	"github.com/pkg/profile"
)

type scenario struct {
	Rounds   int `toml:"rounds"`
	Iters    int `toml:"iters"`
	Entities int `toml:"entities"`
}

type comp1 struct {
	V int64
	W int64
}

type comp2 struct {
	V int64
	W int64
}

func main() {
	sc := scenario{Rounds: 50, Iters: 10000, Entities: 1000}
	if len(os.Args) > 1 {
		if _, err := toml.DecodeFile(os.Args[1], &sc); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: read scenario %s: %v\n", os.Args[1], err)
			os.Exit(1)
		}
	}
	p := profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook)
	run(sc)
	p.Stop()
}

func run(sc scenario) {
	names := bento.NewNameTable()
	n1 := names.Intern("comp1")
	n2 := names.Intern("comp2")
	for range sc.Rounds {
		s := bento.NewStore(sc.Entities, bento.WithNames(names))
		b := bento.NewBuilder2[comp1, comp2](s, n1, n2)
		f := bento.NewFilter2[comp1, comp2](s, n1, n2)
		for range sc.Iters {
			ids, err := b.NewEntities(sc.Entities)
			if err != nil {
				panic(err)
			}
			f.Reset()
			for f.Next() {
				c1, c2 := f.Get()
				c1.V += c2.V
				c1.W += c2.W
			}
			for _, e := range ids {
				if err := s.DeleteEntity(e); err != nil {
					panic(err)
				}
			}
		}
	}
}
