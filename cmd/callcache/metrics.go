package main

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
)

func printMetrics(out io.Writer, reg *prometheus.Registry) {
	fmt.Fprintln(out, "\n==================== METRICS ====================")

	mfs, err := reg.Gather()
	if err != nil {
		fmt.Fprintln(out, "gather failed:", err)
		return
	}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			op := ""
			for _, l := range m.GetLabel() {
				if l.GetName() == "op" {
					op = l.GetValue()
				}
			}
			switch {
			case m.GetCounter() != nil:
				fmt.Fprintf(out, "%-34s %-7s %v\n", mf.GetName(), op, m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				fmt.Fprintf(out, "%-34s %-7s count=%d sum=%.3fs\n", mf.GetName(), op,
					m.GetHistogram().GetSampleCount(), m.GetHistogram().GetSampleSum())
			}
		}
	}
}
