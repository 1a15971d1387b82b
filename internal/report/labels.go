package report

import (
	"fmt"
	"strings"
	"time"
)

// Lang selects the label set used in headers and warnings.
type Lang string

const (
	EN Lang = "EN"
	PT Lang = "PT"
)

// ParseLang accepts "en"/"pt" in any case; anything else is EN.
func ParseLang(s string) Lang {
	if strings.EqualFold(strings.TrimSpace(s), string(PT)) {
		return PT
	}
	return EN
}

type labels struct {
	columns     []string
	weekPrefix  string
	title       string
	holidays    string
	warnings    string
	noHolidays  string
	riskWarning string
	unscheduled string
	months      [12]string
}

var labelSets = map[Lang]labels{
	EN: {
		columns:     []string{"ID", "Phase", "Task", "Duration (Wks)", "Start", "End"},
		weekPrefix:  "w/c",
		title:       "%s Timeline (%s Holidays)",
		holidays:    "Holidays",
		warnings:    "Warnings",
		noHolidays:  "none",
		riskWarning: "⚠️ CRITICAL WARNING: %s Task '%s' overlaps with Absence of '%s' (%s to %s)!",
		unscheduled: "Task '%s' (%s) could not be scheduled: dependency cycle or blocked by one.",
		months:      [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
	},
	PT: {
		columns:     []string{"ID", "Fase", "Tarefa", "Duração (Sem)", "Início", "Fim"},
		weekPrefix:  "Sem de",
		title:       "Cronograma %s (Feriados %s)",
		holidays:    "Feriados",
		warnings:    "Avisos",
		noHolidays:  "nenhum",
		riskWarning: "⚠️ AVISO CRÍTICO: Tarefa %s '%s' coincide com Ausência de '%s' (%s até %s)!",
		unscheduled: "Tarefa '%s' (%s) não pôde ser agendada: dependência circular ou bloqueada por uma.",
		months:      [12]string{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"},
	},
}

func labelsFor(l Lang) labels {
	if ls, ok := labelSets[l]; ok {
		return ls
	}
	return labelSets[EN]
}

func (ls labels) weekLabel(ws time.Time) string {
	return fmt.Sprintf("%s %02d-%s", ls.weekPrefix, ws.Day(), ls.months[ws.Month()-1])
}
