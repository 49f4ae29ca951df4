package inventory

// Level is the stock classification of an item.
type Level string

const (
	// LevelCritical marks an item with no stock left.
	LevelCritical Level = "critical"
	// LevelLow marks an item at or below its minimum threshold.
	LevelLow Level = "low"
	// LevelNormal marks an item above its threshold.
	LevelNormal Level = "normal"
)

// Classify returns the stock level of item. A zero threshold never yields LevelLow.
func Classify(item Item) Level {
	switch {
	case item.CurrentQuantity <= 0:
		return LevelCritical
	case item.CurrentQuantity <= item.MinThreshold:
		return LevelLow
	default:
		return LevelNormal
	}
}
