package loadtest

// HTTP status code constants.
const (
	StatusOK      = 200
	StatusCreated = 201
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	PercentageMultiplier = 100
	// valueTolerance absorbs the fixed-point rounding of the ranking store.
	valueTolerance = 1e-6
)

// regions assigned to generated countries.
var regions = []string{"Africa", "Asia", "Europe", "Latin America", "Northern America", "Oceania"}
