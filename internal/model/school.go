package model

// School is one queried entity. Reference data, read-only to the pipeline.
type School struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Region string `json:"region"`
	City   string `json:"city"`
}

// Curriculum is one study programme offered by schools, parsed from the
// "Name (CODE)" literals the dashboard uses.
type Curriculum struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// Contact holds the manually curated directory entry for a school.
type Contact struct {
	Website string `json:"website"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}
