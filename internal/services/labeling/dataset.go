package labeling

import "marketpulse/internal/ml"

// Dataset is the labelled, scaled training set handed to the ensemble
type Dataset = ml.Dataset
