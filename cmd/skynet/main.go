// Command skynet runs the classic skynet benchmark on the fiber runtime:
// spawn 10 children per node down to one million leaves, sum the leaf
// indices back up.
package main

import (
	"flag"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/GoBlaze/strand"
)

func skynet(num, size, div int) int64 {
	if size == 1 {
		return int64(num)
	}
	var total int64
	part := size / div
	children := make([]*strand.Context, 0, div)
	sums := make([]int64, div)
	for i := 0; i < div; i++ {
		i := i
		children = append(children, strand.MakeWorker(strand.Post, func() {
			sums[i] = skynet(num+i*part, part, div)
		}))
	}
	for i, c := range children {
		if err := c.Join(); err != nil {
			logrus.Fatalf("join: %v", err)
		}
		total += sums[i]
	}
	return total
}

func main() {
	size := flag.Int("size", 1_000_000, "number of leaf fibers")
	div := flag.Int("div", 10, "fan-out per node")
	flag.Parse()

	s := strand.NewScheduler()
	defer s.Shutdown()

	start := time.Now()
	var total int64
	root := strand.MakeWorker(strand.Post, func() {
		total = skynet(0, *size, *div)
	})
	if err := root.Join(); err != nil {
		logrus.Fatalf("join: %v", err)
	}
	logrus.Infof("skynet(%d): %d in %s", *size, total, time.Since(start))
}
