// Copyright 2022-2026 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package promutil

import (
	"bytes"
	"io"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Filter reports whether a metric family should be kept.
type Filter func(*dto.MetricFamily) bool

// NamePrefixFilter keeps metric families whose name starts with any of prefixes.
// No prefixes keeps everything.
func NamePrefixFilter(prefixes ...string) Filter {
	return func(mf *dto.MetricFamily) bool {
		if len(prefixes) == 0 {
			return true
		}
		for _, p := range prefixes {
			if strings.HasPrefix(mf.GetName(), p) {
				return true
			}
		}
		return false
	}
}

// DumpPrometheusMetrics renders metrics gathered from p in the text exposition format.
func DumpPrometheusMetrics(p prometheus.Gatherer, filters ...Filter) (string, error) {
	got, err := p.Gather()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.FmtText)
	for _, mf := range got {
		ok := true
		for _, f := range filters {
			if !f(mf) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}

		if err := enc.Encode(mf); err != nil {
			return "", err
		}
	}

	return buf.String(), nil
}

// ParseMetricFamilies reads metrics in the text exposition format,
// the result can be passed to DumpPrometheusMetrics.
func ParseMetricFamilies(reader io.Reader) (*Gatherer, error) {
	var parser expfmt.TextParser
	mf, err := parser.TextToMetricFamilies(reader)
	if err != nil {
		return nil, err
	}

	return &Gatherer{mf: mf}, nil
}

type Gatherer struct {
	mf map[string]*dto.MetricFamily
}

// Gather returns metric families sorted by name.
func (g *Gatherer) Gather() ([]*dto.MetricFamily, error) {
	res := make([]*dto.MetricFamily, 0, len(g.mf))
	for _, mf := range g.mf {
		res = append(res, mf)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].GetName() < res[j].GetName()
	})
	return res, nil
}
