// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/innacampo/selene-demo/services/selene/datatypes"
)

// defaultStages ships with the binary so a missing stages file never
// leaves the assistant without stage science.
var defaultStages = []datatypes.Stage{
	{
		Key:     "premenopause",
		Title:   "Premenopause",
		Cycle:   "Regular cycles, stable hormone rhythm.",
		Science: "Estrogen and progesterone follow a predictable monthly pattern. Symptoms here are usually cycle-linked rather than transitional.",
	},
	{
		Key:     "early_perimenopause",
		Title:   "Early Perimenopause",
		Cycle:   "Cycles still occur but length varies by 7+ days.",
		Science: "Progesterone declines first while estrogen fluctuates widely. Sleep disruption and mood shifts often appear before hot flashes.",
	},
	{
		Key:     "late_perimenopause",
		Title:   "Late Perimenopause",
		Cycle:   "Gaps of 60+ days between periods.",
		Science: "Estrogen swings become extreme. Vasomotor symptoms (hot flashes, night sweats) typically peak in this window.",
	},
	{
		Key:     "menopause",
		Title:   "Menopause",
		Cycle:   "12 consecutive months without a period.",
		Science: "Ovarian estrogen production has largely ceased. Symptoms begin to stabilize, though sleep and cognition can lag behind.",
	},
	{
		Key:     "postmenopause",
		Title:   "Postmenopause",
		Cycle:   "Beyond the menopause anchor point.",
		Science: "Hormones settle at a new low baseline. Long-term focus shifts to bone density, cardiovascular, and cognitive health.",
	},
}

type stagesFile struct {
	Stages []datatypes.Stage `yaml:"stages"`
}

// LoadStages reads stage metadata from path, falling back to the
// built-in set when the file is absent.
func LoadStages(path string) ([]datatypes.Stage, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultStages, nil
		}
		return nil, fmt.Errorf("reading stages file %s: %w", path, err)
	}
	var parsed stagesFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parsing stages file %s: %w", path, err)
	}
	if len(parsed.Stages) == 0 {
		return defaultStages, nil
	}
	for _, s := range parsed.Stages {
		if s.Key == "" || s.Title == "" {
			return nil, fmt.Errorf("stages file %s: every stage needs a key and a title", path)
		}
	}
	return parsed.Stages, nil
}

// StageByKey finds a stage by its key, or returns false.
func StageByKey(stages []datatypes.Stage, key string) (datatypes.Stage, bool) {
	for _, s := range stages {
		if s.Key == key {
			return s, true
		}
	}
	return datatypes.Stage{}, false
}
