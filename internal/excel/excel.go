package excel

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/derekprior/seasongen/internal/league"
)

const (
	MasterSheet  = "Master Schedule"
	SummarySheet = "Summary"
)

// Generate creates a workbook with the master schedule, a per-team summary
// and one sheet per team. fields fixes the master sheet's column order; when
// empty the columns follow the field names found in slots.
func Generate(season league.Season, slots []league.Slot, games []league.Game, fields []string) (*excelize.File, error) {
	f := excelize.NewFile()
	f.SetDefaultFont("Arial")

	if len(fields) == 0 {
		fields = fieldsOf(slots)
	}
	teams := season.Teams()
	divisions := make(map[int64]string, len(season.Divisions))
	for _, d := range season.Divisions {
		divisions[d.ID] = d.Name
	}

	if err := writeMasterSheet(f, slots, games, fields, teams); err != nil {
		return nil, fmt.Errorf("writing master sheet: %w", err)
	}
	if err := writeSummarySheet(f, season, games); err != nil {
		return nil, fmt.Errorf("writing summary sheet: %w", err)
	}
	if err := writeTeamSheets(f, season, games, teams, divisions); err != nil {
		return nil, fmt.Errorf("writing team sheets: %w", err)
	}

	f.DeleteSheet("Sheet1")
	return f, nil
}

func fieldsOf(slots []league.Slot) []string {
	seen := make(map[string]bool)
	var fields []string
	for _, s := range slots {
		if !seen[s.Field] {
			seen[s.Field] = true
			fields = append(fields, s.Field)
		}
	}
	sort.Strings(fields)
	return fields
}

// fieldColumnName shortens a field to its first word when no other field
// shares that word.
func fieldColumnName(name string, allNames []string) string {
	first, _, _ := strings.Cut(name, " ")
	count := 0
	for _, n := range allNames {
		if word, _, _ := strings.Cut(n, " "); word == first {
			count++
		}
	}
	if count > 1 {
		return name
	}
	return first
}

// GameCell renders a game as it appears on the master sheet.
func GameCell(away, home string) string {
	return fmt.Sprintf("%s @ %s", away, home)
}

// ParseGameCell parses "Away @ Home". ok is false for any other text.
func ParseGameCell(cell string) (away, home string, ok bool) {
	away, home, ok = strings.Cut(cell, " @ ")
	if !ok || away == "" || home == "" {
		return "", "", false
	}
	return away, home, true
}

func headerStyle(f *excelize.File) int {
	style, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF", Size: 16, Family: "Arial"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#4472C4"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	return style
}

func writeHeaders(f *excelize.File, sheet string, headers []string) {
	for i, h := range headers {
		f.SetCellValue(sheet, cellRef(i+1, 1), h)
	}
	if style := headerStyle(f); style != 0 {
		f.SetCellStyle(sheet, cellRef(1, 1), cellRef(len(headers), 1), style)
	}
}

func writeMasterSheet(f *excelize.File, slots []league.Slot, games []league.Game, fields []string, teams map[int64]league.Team) error {
	sheet := MasterSheet
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	fieldCols := make([]string, len(fields))
	for i, name := range fields {
		fieldCols[i] = fieldColumnName(name, fields)
	}

	// Headers: Date, Day, Time, <field1>, <field2>, ...
	headers := append([]string{"Date", "Day", "Time"}, fieldCols...)
	writeHeaders(f, sheet, headers)

	cellStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Size: 16, Family: "Arial"},
	})
	fieldCellStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 16, Family: "Arial"},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	type slotKey struct {
		date  time.Time
		time  string
		field string
	}
	gameAt := make(map[slotKey]league.Game, len(games))
	for _, g := range games {
		gameAt[slotKey{g.Date, g.Time, g.Field}] = g
	}

	// One row per (date, time) that has a slot or a game.
	type timeSlot struct {
		date time.Time
		time string
	}
	seen := make(map[timeSlot]bool)
	var rows []timeSlot
	add := func(d time.Time, t string) {
		ts := timeSlot{d, t}
		if !seen[ts] {
			seen[ts] = true
			rows = append(rows, ts)
		}
	}
	for _, s := range slots {
		add(s.Date, s.Time)
	}
	for _, g := range games {
		add(g.Date, g.Time)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].date.Equal(rows[j].date) {
			return rows[i].date.Before(rows[j].date)
		}
		return rows[i].time < rows[j].time
	})

	for i, ts := range rows {
		row := i + 2
		f.SetCellValue(sheet, cellRef(1, row), ts.date.Format("01/02/2006"))
		f.SetCellValue(sheet, cellRef(2, row), ts.date.Format("Mon"))
		f.SetCellValue(sheet, cellRef(3, row), ts.time)

		for fi, field := range fields {
			if g, ok := gameAt[slotKey{ts.date, ts.time, field}]; ok {
				f.SetCellValue(sheet, cellRef(fi+4, row), GameCell(teams[g.AwayTeamID].Name, teams[g.HomeTeamID].Name))
			}
		}

		if cellStyle != 0 {
			f.SetCellStyle(sheet, cellRef(1, row), cellRef(3, row), cellStyle)
		}
		if fieldCellStyle != 0 && len(fields) > 0 {
			f.SetCellStyle(sheet, cellRef(4, row), cellRef(len(headers), row), fieldCellStyle)
		}
	}

	// Column widths are sized for Arial 16.
	f.SetColWidth(sheet, "A", "A", 18)
	f.SetColWidth(sheet, "B", "B", 8)
	f.SetColWidth(sheet, "C", "C", 10)
	for i := range fields {
		col := colLetter(i + 4)
		f.SetColWidth(sheet, col, col, 30)
	}

	// Open slots are shaded so they stand out for manual backfill.
	if len(rows) == 0 {
		return nil
	}
	openFill, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#E2EFDA"}},
		Font: &excelize.Font{Size: 16, Family: "Arial"},
	})
	lastRow := len(rows) + 1
	for i := range fields {
		col := colLetter(i + 4)
		topCell := fmt.Sprintf("%s2", col)
		err := f.SetConditionalFormat(sheet, fmt.Sprintf("%s2:%s%d", col, col, lastRow), []excelize.ConditionalFormatOptions{
			{
				Type:     "formula",
				Criteria: fmt.Sprintf(`LEN(%s)=0`, topCell),
				Format:   &openFill,
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func writeSummarySheet(f *excelize.File, season league.Season, games []league.Game) error {
	sheet := SummarySheet
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	writeHeaders(f, sheet, []string{"Team", "Division", "Games", "Home", "Away"})

	type tally struct{ home, away int }
	counts := make(map[int64]*tally)
	for _, g := range games {
		for _, id := range []int64{g.HomeTeamID, g.AwayTeamID} {
			if counts[id] == nil {
				counts[id] = &tally{}
			}
		}
		counts[g.HomeTeamID].home++
		counts[g.AwayTeamID].away++
	}

	row := 2
	for _, div := range season.Divisions {
		for _, t := range div.Teams {
			c := counts[t.ID]
			if c == nil {
				c = &tally{}
			}
			f.SetCellValue(sheet, cellRef(1, row), t.Name)
			f.SetCellValue(sheet, cellRef(2, row), div.Name)
			f.SetCellValue(sheet, cellRef(3, row), c.home+c.away)
			f.SetCellValue(sheet, cellRef(4, row), c.home)
			f.SetCellValue(sheet, cellRef(5, row), c.away)
			row++
		}
	}
	f.SetColWidth(sheet, "A", "B", 24)
	return nil
}

func writeTeamSheets(f *excelize.File, season league.Season, games []league.Game, teams map[int64]league.Team, divisions map[int64]string) error {
	headers := []string{"Date", "Day", "Time", "Field", "Opponent", "Home/Away", "Division"}
	cellStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Size: 16, Family: "Arial"},
	})

	sorted := append([]league.Game(nil), games...)
	league.SortGames(sorted)

	taken := map[string]bool{
		strings.ToLower(MasterSheet):  true,
		strings.ToLower(SummarySheet): true,
		"sheet1":                      true,
	}
	for _, div := range season.Divisions {
		for _, team := range div.Teams {
			sheet := uniqueSheetName(team.Name, taken)
			if _, err := f.NewSheet(sheet); err != nil {
				return fmt.Errorf("team %q: %w", team.Name, err)
			}
			writeHeaders(f, sheet, headers)

			row := 2
			for _, g := range sorted {
				var opponent int64
				var homeAway string
				switch team.ID {
				case g.HomeTeamID:
					opponent, homeAway = g.AwayTeamID, "Home"
				case g.AwayTeamID:
					opponent, homeAway = g.HomeTeamID, "Away"
				default:
					continue
				}
				f.SetCellValue(sheet, cellRef(1, row), g.Date.Format("01/02/2006"))
				f.SetCellValue(sheet, cellRef(2, row), g.Date.Format("Mon"))
				f.SetCellValue(sheet, cellRef(3, row), g.Time)
				f.SetCellValue(sheet, cellRef(4, row), g.Field)
				f.SetCellValue(sheet, cellRef(5, row), teams[opponent].Name)
				f.SetCellValue(sheet, cellRef(6, row), homeAway)
				f.SetCellValue(sheet, cellRef(7, row), divisions[g.DivisionID])
				if cellStyle != 0 {
					f.SetCellStyle(sheet, cellRef(1, row), cellRef(len(headers), row), cellStyle)
				}
				row++
			}

			widths := map[string]float64{"A": 18, "B": 8, "C": 10, "D": 28, "E": 20, "F": 14, "G": 16}
			for col, w := range widths {
				f.SetColWidth(sheet, col, col, w)
			}
		}
	}
	return nil
}

// SheetName makes a team name usable as a sheet name: at most 31 characters
// and none of : \ / ? * [ ].
func SheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '-'
		}
		return r
	}, name)
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}
	return name
}

// uniqueSheetName returns SheetName(name), suffixed with " (2)", " (3)" and
// so on when that name is already in taken. Sheet names compare without case.
func uniqueSheetName(name string, taken map[string]bool) string {
	base := SheetName(name)
	sheet := base
	for n := 2; taken[strings.ToLower(sheet)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		r := []rune(base)
		if limit := 31 - len(suffix); len(r) > limit {
			r = r[:limit]
		}
		sheet = string(r) + suffix
	}
	taken[strings.ToLower(sheet)] = true
	return sheet
}

func cellRef(col, row int) string {
	return fmt.Sprintf("%s%d", colLetter(col), row)
}

func colLetter(col int) string {
	result := ""
	for col > 0 {
		col--
		result = string(rune('A'+col%26)) + result
		col /= 26
	}
	return result
}
