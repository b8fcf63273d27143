package adcs

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ExportConfig configures the episode history output.
type ExportConfig struct {
	Filename  string
	AsCSV     bool
	Timestamp bool
}

// IsUseless returns whether this config doesn't actually do anything.
func (c ExportConfig) IsUseless() bool {
	return !c.AsCSV
}

// NameTimestamp returns the filename with the current timestamp appended if
// requested.
func (c ExportConfig) NameTimestamp() string {
	if !c.Timestamp {
		return c.Filename
	}
	return fmt.Sprintf("%s-%s", c.Filename, time.Now().Format("2006-01-02-15.04.05"))
}

// StreamSimStates writes every simulation state received on the channel to a
// CSV file, until the channel is closed.
func StreamSimStates(conf ExportConfig, stateChan <-chan SimState) {
	f, err := os.Create(fmt.Sprintf("%s/%s.csv", outputDir(), conf.NameTimestamp()))
	if err != nil {
		panic(err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	hdr := []string{"t", "yaw", "pitch", "roll", "wx", "wy", "wz"}
	for i := 0; i < NumWheels; i++ {
		hdr = append(hdr, fmt.Sprintf("wheel%d", i+1))
	}
	for i := 0; i < NumWheels; i++ {
		hdr = append(hdr, fmt.Sprintf("torque%d", i+1))
	}
	hdr = append(hdr, "estYaw", "estPitch", "estRoll", "estWx", "estWy", "estWz")
	if err = w.Write(hdr); err != nil {
		panic(err)
	}
	for state := range stateChan {
		rec := make([]string, 0, len(hdr))
		rec = append(rec, fmtF(state.T))
		for _, v := range state.State.Vector() {
			rec = append(rec, fmtF(v))
		}
		for _, v := range state.WheelW {
			rec = append(rec, fmtF(v))
		}
		for _, v := range state.Torques {
			rec = append(rec, fmtF(v))
		}
		for _, v := range state.Estimate.Vector() {
			rec = append(rec, fmtF(v))
		}
		if err = w.Write(rec); err != nil {
			panic(err)
		}
	}
}

func fmtF(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
