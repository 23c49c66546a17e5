package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/relabs-tech/dr-engine/internal/normaliser"
)

// SensorTypeID is the closed dispatch key the cfg-string round-trips.
type SensorTypeID int

const (
	SensorUnknown       SensorTypeID = 0
	SensorLatitude      SensorTypeID = 1 // reserved, not processed by this core
	SensorLongitude     SensorTypeID = 2 // reserved, not processed by this core
	SensorHeading       SensorTypeID = 3
	SensorSpeed         SensorTypeID = 4
	SensorOdometerAxis  SensorTypeID = 5
	SensorGyroZ         SensorTypeID = 6
	SensorOdometerWheel SensorTypeID = 7  // reserved, not processed by this core
	SensorGyroX         SensorTypeID = 8  // reserved, not processed by this core
	SensorGyroY         SensorTypeID = 9  // reserved, not processed by this core
	SensorAccelX        SensorTypeID = 10 // reserved, not processed by this core
	SensorAccelY        SensorTypeID = 11 // reserved, not processed by this core
	SensorAccelZ        SensorTypeID = 12 // reserved, not processed by this core
	SensorSteeringAngle SensorTypeID = 13 // reserved, not processed by this core
)

const (
	cfgMarker        = "CFGSENSOR"
	cfgNumberElements = 12
	// DefaultReliableLimit applies when no persisted record or host
	// setting supplies a threshold.
	DefaultReliableLimit = 99.5
)

// sensorCfg is one adjuster's persisted record: its type tag, the two
// normaliser states (scale, bias), and its reliable-limit threshold.
type sensorCfg struct {
	typeID        SensorTypeID
	scale         normaliser.State
	bias          normaliser.State
	reliableLimit float64
	persisted     bool
}

func defaultSensorCfg(typeID SensorTypeID) sensorCfg {
	return sensorCfg{
		typeID:        typeID,
		scale:         normaliser.New(),
		bias:          normaliser.New(),
		reliableLimit: DefaultReliableLimit,
	}
}

// serializeSensorCfg formats one adjuster's record to the fixed
// comma-separated CFGSENSOR layout: 8 decimals for accumulated
// value/mld, 1 decimal for reliable/limit, 0 decimals for count.
func serializeSensorCfg(c sensorCfg) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s,%d,", cfgMarker, c.typeID)
	fmt.Fprintf(&b, "%.8f,%.8f,%.1f,%.0f,", c.scale.AccValue, c.scale.AccMld, c.scale.AccReliable, float64(c.scale.SampleCount))
	fmt.Fprintf(&b, "%.8f,%.8f,%.1f,%.0f,", c.bias.AccValue, c.bias.AccMld, c.bias.AccReliable, float64(c.bias.SampleCount))
	fmt.Fprintf(&b, "%.1f,XX", c.reliableLimit)
	return b.String()
}

// parseSensorCfg parses one record. On any marker/field-count mismatch
// it returns a default-seeded record for typeID rather than an error;
// a corrupt persistence file costs calibration history, nothing more.
func parseSensorCfg(s string, typeID SensorTypeID) sensorCfg {
	fields := strings.Split(strings.TrimSpace(s), ",")
	if len(fields) != cfgNumberElements || fields[0] != cfgMarker {
		return defaultSensorCfg(typeID)
	}
	nums := make([]float64, 0, cfgNumberElements-2)
	for _, f := range fields[1 : cfgNumberElements-1] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return defaultSensorCfg(typeID)
		}
		nums = append(nums, v)
	}
	// nums layout: [type, scaleVal, scaleMld, scaleRel, scaleCount, biasVal, biasMld, biasRel, biasCount, limit]
	return sensorCfg{
		typeID:        SensorTypeID(int(nums[0])),
		scale:         normaliser.Seeded(nums[1], nums[2], nums[3], int64(nums[4])),
		bias:          normaliser.Seeded(nums[5], nums[6], nums[7], int64(nums[8])),
		reliableLimit: nums[9],
		persisted:     true,
	}
}

// parseConfigString splits the persisted cfg string (one or more
// newline-separated CFGSENSOR records) into gyro and odometer
// sub-records, tolerating missing or malformed records by falling back
// to a default for that sensor type.
func parseConfigString(cfg string) (gyro, odo sensorCfg) {
	gyro = defaultSensorCfg(SensorGyroZ)
	odo = defaultSensorCfg(SensorOdometerAxis)
	for _, line := range strings.Split(cfg, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != cfgNumberElements || fields[0] != cfgMarker {
			continue
		}
		typeNum, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		switch SensorTypeID(typeNum) {
		case SensorGyroZ:
			gyro = parseSensorCfg(line, SensorGyroZ)
		case SensorOdometerAxis:
			odo = parseSensorCfg(line, SensorOdometerAxis)
		}
	}
	return gyro, odo
}

// serializeConfigString joins both adjusters' records into the single
// persisted artifact the façade hands back on Stop.
func serializeConfigString(gyro, odo sensorCfg) string {
	return serializeSensorCfg(gyro) + "\n" + serializeSensorCfg(odo)
}
