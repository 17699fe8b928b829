package seq_test

import (
	"fmt"
	"slices"

	"github.com/saschpe/self-healing-sub000/seq"
)

func ExampleSequence() {
	s := seq.NewFrom(slices.Values([]int{1, 2, 3}), seq.WithChunkSize(2))
	_ = s.PushBack(4)
	_ = s.Insert(0, 0)
	_ = s.Erase(2)

	for i, v := range s.Items {
		fmt.Println(i, v)
	}
	fmt.Println(s.Valid())
	// Output:
	// 0 0
	// 1 1
	// 2 3
	// 3 4
	// true
}
