package model

import "time"

// ShortDateFormat is the layout of the published start-date payload.
const ShortDateFormat = "01/02/2006"

// CollectionRecord is the normalized result of one address lookup: the next
// upcoming collection date and which services pick up on that date. The
// service booleans all describe the same date; they are not resolved
// independently.
type CollectionRecord struct {
	Address          string    `json:"address"`
	Start            time.Time `json:"start"`
	Garbage          bool      `json:"garbage"`
	Recycling        bool      `json:"recycling"`
	FoodAndYardWaste bool      `json:"foodAndYardWaste"`
}

// ShortDate formats the record's start date for publishing.
func (r CollectionRecord) ShortDate() string {
	return r.Start.Format(ShortDateFormat)
}

// OnOff renders a boolean as the binary-sensor payload token pair.
func OnOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}
