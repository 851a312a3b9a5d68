// Package extract implements the first pipeline stage: one semantic query
// per school, decoded into raw records and appended durably per entity so a
// crash after school N leaves a valid store of exactly schools 1..N.
package extract

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/prihlasky/admissions-cli/internal/model"
)

// LoadSchools reads the school reference list from a JSON array of school
// objects. Schools without an explicit id fall back to their name.
func LoadSchools(path string) ([]model.School, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read schools %s", path)
	}
	var schools []model.School
	if err := json.Unmarshal(data, &schools); err != nil {
		return nil, eris.Wrapf(err, "extract: parse schools %s", path)
	}
	for i := range schools {
		if schools[i].ID == "" {
			schools[i].ID = schools[i].Name
		}
	}
	return schools, nil
}

// LoadCurriculums reads the curriculum reference list from a JSON array of
// "Name (CODE)" strings, the literal format the dashboard publishes.
// Entries without a parenthesized code keep an empty code.
func LoadCurriculums(path string) ([]model.Curriculum, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read curriculums %s", path)
	}
	var literals []string
	if err := json.Unmarshal(data, &literals); err != nil {
		return nil, eris.Wrapf(err, "extract: parse curriculums %s", path)
	}

	curricula := make([]model.Curriculum, 0, len(literals))
	for _, lit := range literals {
		lit = strings.TrimSpace(strings.Trim(lit, "'\""))
		if lit == "" {
			continue
		}
		curricula = append(curricula, parseCurriculumLiteral(lit))
	}
	return curricula, nil
}

func parseCurriculumLiteral(lit string) model.Curriculum {
	open := strings.LastIndex(lit, "(")
	closing := strings.LastIndex(lit, ")")
	if open < 0 || closing < open {
		return model.Curriculum{Name: lit}
	}
	return model.Curriculum{
		Name: strings.TrimSpace(lit[:open]),
		Code: strings.TrimSpace(lit[open+1 : closing]),
	}
}
