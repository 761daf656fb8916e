package coresim

import (
	"bytes"
	"context"
	"fmt"

	"github.com/prometheus/common/expfmt"

	"github.com/piwi3910/camweave/internal/adapter"
)

// ueIPInfoMetric is the simulator's per-UE gauge on its exposition page.
// Each registered UE appears as ue_ip_info{imsi="...",ip="..."} 1.
const ueIPInfoMetric = "ue_ip_info"

// imsiFromMetrics scrapes the simulator's metrics page once and recovers
// the IMSI attached to the given UE address.
func (a *Adapter) imsiFromMetrics(ctx context.Context, ip string) (string, error) {
	if a.cfg.MetricsURL == "" {
		return "", fmt.Errorf("no metrics fallback configured")
	}
	adapter.RecordProfileCacheMiss(a.Name())

	body, err := a.client.GetRaw(ctx, a.cfg.MetricsURL)
	if err != nil {
		return "", fmt.Errorf("metrics fallback fetch failed: %w", err)
	}

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("metrics fallback parse failed: %w", err)
	}

	family, ok := families[ueIPInfoMetric]
	if !ok {
		return "", fmt.Errorf("metric %s not exposed", ueIPInfoMetric)
	}

	for _, m := range family.GetMetric() {
		var imsi, metricIP string
		for _, label := range m.GetLabel() {
			switch label.GetName() {
			case "imsi":
				imsi = label.GetValue()
			case "ip":
				metricIP = label.GetValue()
			}
		}
		if metricIP != ip || imsi == "" {
			continue
		}
		if g := m.GetGauge(); g != nil && g.GetValue() != 1 {
			continue
		}
		return imsi, nil
	}
	return "", fmt.Errorf("no UE with ip %s in metrics", ip)
}
