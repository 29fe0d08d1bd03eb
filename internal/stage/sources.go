package stage

// Staged schemas for the five raw feeds. Field names match the canonical
// names the ingestion client writes to the landing tables; ingestion_ts and
// source tag every raw record regardless of feed.

// Validations returns the staging definition for daily ticket validations.
func Validations() *Def {
	return &Def{
		StageName: "stg_validations",
		Source:    "raw_validations",
		Fields: []Field{
			{Name: "date", Kind: KindDate, Required: true},
			{Name: "stop_id", Kind: KindString, Required: true},
			{Name: "stop_name", Kind: KindString},
			{Name: "line_id", Kind: KindString},
			{Name: "line_name", Kind: KindString},
			{Name: "ticket_type", Kind: KindString, Required: true},
			{Name: "validation_count", Kind: KindInt, Required: true},
			{Name: "ingestion_ts", Kind: KindTimestamp, Required: true},
			{Name: "source", Kind: KindString},
		},
	}
}

// Punctuality returns the staging definition for monthly line punctuality.
func Punctuality() *Def {
	return &Def{
		StageName: "stg_punctuality",
		Source:    "raw_punctuality",
		Fields: []Field{
			{Name: "month", Kind: KindMonth, Required: true},
			{Name: "line_id", Kind: KindString, Required: true},
			{Name: "line_name", Kind: KindString},
			{Name: "service", Kind: KindString},
			{Name: "punctuality_rate", Kind: KindFloat, Required: true},
			{Name: "ingestion_ts", Kind: KindTimestamp, Required: true},
			{Name: "source", Kind: KindString},
		},
	}
}

// RefStops returns the staging definition for the stops referential.
func RefStops() *Def {
	return &Def{
		StageName: "stg_ref_stops",
		Source:    "raw_ref_stops",
		Fields: []Field{
			{Name: "stop_id", Kind: KindString, Required: true},
			{Name: "stop_name", Kind: KindString},
			{Name: "latitude", Kind: KindFloat},
			{Name: "longitude", Kind: KindFloat},
			{Name: "town", Kind: KindString},
			{Name: "ingestion_ts", Kind: KindTimestamp, Required: true},
			{Name: "source", Kind: KindString},
		},
	}
}

// RefLines returns the staging definition for the lines referential.
func RefLines() *Def {
	return &Def{
		StageName: "stg_ref_lines",
		Source:    "raw_ref_lines",
		Fields: []Field{
			{Name: "line_id", Kind: KindString, Required: true},
			{Name: "line_name", Kind: KindString},
			{Name: "transport_mode", Kind: KindString},
			{Name: "operator", Kind: KindString},
			{Name: "ingestion_ts", Kind: KindTimestamp, Required: true},
			{Name: "source", Kind: KindString},
		},
	}
}

// RefStopLines returns the staging definition for the stop-line mapping.
func RefStopLines() *Def {
	return &Def{
		StageName: "stg_ref_stop_lines",
		Source:    "raw_ref_stop_lines",
		Fields: []Field{
			{Name: "stop_id", Kind: KindString, Required: true},
			{Name: "line_id", Kind: KindString, Required: true},
			{Name: "ingestion_ts", Kind: KindTimestamp, Required: true},
			{Name: "source", Kind: KindString},
		},
	}
}
