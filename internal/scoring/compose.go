// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package scoring

import (
	"math"

	"github.com/bonial-oss/physec-risk/internal/types"
)

// Composite is the composed risk of one threat.
type Composite struct {
	types.FactorScores
	InherentRisk   float64
	NormalizedRisk float64
	Level          types.RiskLevel
}

// Compose clamps the factors to the scale and computes L×V×I (×E), the
// 0-100 normalized risk and its classification. Every scoring path goes
// through here.
func Compose(scale types.Scale, thresholds types.Thresholds, f types.FactorScores) Composite {
	c := Composite{FactorScores: types.FactorScores{
		Likelihood:    scale.Clamp(f.Likelihood),
		Vulnerability: scale.Clamp(f.Vulnerability),
		Impact:        scale.Clamp(f.Impact),
	}}

	inherent := float64(c.Likelihood) * float64(c.Vulnerability) * float64(c.Impact)
	if scale.Exposure {
		e := scale.ExposureMin
		if f.Exposure != nil {
			e = scale.ClampExposure(*f.Exposure)
		}
		c.Exposure = &e
		inherent *= e
	}

	c.InherentRisk = round2(inherent)
	c.NormalizedRisk = round2(math.Min(100*inherent/scale.MaxPossible(), 100))
	c.Level = thresholds.Classify(c.NormalizedRisk)
	return c
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
