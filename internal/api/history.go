package api

import (
	"context"
	"encoding/json"
	"fmt"
	"humidcast/internal/models"
	"net/url"
	"slices"
	"strconv"
	"time"
)

const dateLayout = "2006-01-02"

// FetchHistory returns up to windowDays of daily averages for one sensor,
// oldest first.
func (c *Client) FetchHistory(ctx context.Context, token, sensorID string, windowDays int) (models.Series, error) {
	var body map[string]json.RawMessage
	if err := c.getJSON(ctx, "averages", "/averages", AveragesQuery(sensorID, windowDays), token, &body); err != nil {
		return models.Series{}, &FetchError{
			SensorID: sensorID,
			Reason:   fmt.Sprintf("Failed to fetch data for sensor %s", sensorID),
			Err:      err,
		}
	}

	raw, ok := body[sensorID]
	if !ok || string(raw) == "null" {
		return models.Series{}, &FetchError{
			SensorID: sensorID,
			Reason:   fmt.Sprintf("No data found for sensor %s", sensorID),
		}
	}

	var averages []models.DailyAverage
	if err := json.Unmarshal(raw, &averages); err != nil {
		return models.Series{}, &FetchError{
			SensorID: sensorID,
			Reason:   fmt.Sprintf("Sensor %s data is not a list of daily averages", sensorID),
			Err:      err,
		}
	}

	series := models.Series{
		SensorID: sensorID,
		Label:    sensorLabel(body, sensorID),
		Readings: make([]models.Reading, 0, len(averages)),
	}
	for _, avg := range averages {
		if avg.Date == nil || avg.AverageValue == nil {
			return models.Series{}, &FetchError{
				SensorID: sensorID,
				Reason:   fmt.Sprintf("Sensor %s data does not contain the required fields: 'date', 'average_value'", sensorID),
			}
		}
		date, err := parseDate(*avg.Date)
		if err != nil {
			return models.Series{}, &FetchError{
				SensorID: sensorID,
				Reason:   fmt.Sprintf("Sensor %s has an invalid date %q", sensorID, *avg.Date),
				Err:      err,
			}
		}
		series.Readings = append(series.Readings, models.Reading{Date: date, Value: *avg.AverageValue})
	}

	// the API reports newest first
	slices.SortFunc(series.Readings, func(a, b models.Reading) int {
		return a.Date.Compare(b.Date)
	})
	for i := 1; i < len(series.Readings); i++ {
		if series.Readings[i].Date.Equal(series.Readings[i-1].Date) {
			return models.Series{}, &FetchError{
				SensorID: sensorID,
				Reason: fmt.Sprintf("Sensor %s reports %s more than once", sensorID,
					series.Readings[i].Date.Format(dateLayout)),
			}
		}
	}

	return series, nil
}

// AveragesQuery builds the query string of the averages route
func AveragesQuery(sensorID string, windowDays int) url.Values {
	return url.Values{
		"unique_identifiers": []string{sensorID},
		"days":               []string{strconv.Itoa(windowDays)},
	}
}

// sensorLabel reads the optional labels map the averages route returns
// alongside the series.
func sensorLabel(body map[string]json.RawMessage, sensorID string) string {
	raw, ok := body["labels"]
	if !ok {
		return ""
	}
	var labels map[string]string
	if err := json.Unmarshal(raw, &labels); err != nil {
		return ""
	}
	return labels[sensorID]
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
