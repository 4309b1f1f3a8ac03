// internal/service/customer/validate.go
package customer

import (
	"database/sql"
	"strconv"
	"strings"
	"time"

	"leadcrm-service/internal/domain/customer"
	xerrors "leadcrm-service/internal/pkg/errors"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const maxPhoneDigits = 12

var maxFieldLengths = map[string]int{
	"queue":       50,
	"first_name":  100,
	"last_name":   100,
	"email":       255,
	"address":     500,
	"country":     100,
	"designation": 100,
	"comment":     1000,
	"agent_name":  100,
	"team":        50,
}

// buildRecord validates a payload and materializes it as a Record. Detection
// and identifier assignment happen later; no database access here.
func (s *Service) buildRecord(p *customer.RecordPayload) (*customer.Record, error) {
	queue := strings.TrimSpace(p.Queue)
	if queue == "" {
		return nil, xerrors.NewFieldError("queue", "required")
	}
	if err := checkLength("queue", queue); err != nil {
		return nil, err
	}

	phone, err := normalizePhone("phone", p.Phone)
	if err != nil {
		return nil, err
	}
	altPhone, err := normalizePhone("alt_phone", p.AltPhone)
	if err != nil {
		return nil, err
	}
	whatsapp, err := normalizePhone("whatsapp", p.WhatsApp)
	if err != nil {
		return nil, err
	}
	email := strings.TrimSpace(p.Email)

	if phone == "" && altPhone == "" && whatsapp == "" && email == "" {
		return nil, xerrors.NewFieldError("phone", "at least one contact field is required")
	}

	for field, value := range map[string]string{
		"first_name":  p.FirstName,
		"last_name":   p.LastName,
		"email":       email,
		"address":     p.Address,
		"country":     p.Country,
		"designation": p.Designation,
		"comment":     p.Comment,
		"agent_name":  p.AgentName,
		"team":        p.Team,
	} {
		if err := checkLength(field, value); err != nil {
			return nil, err
		}
	}

	disposition, ok := customer.ParseDisposition(p.Disposition)
	if !ok && strings.TrimSpace(p.Disposition) != "" {
		s.logger.Warn("unknown disposition, using default",
			zap.String("disposition", p.Disposition),
			zap.String("default", string(customer.DispositionDefault)),
		)
	}

	var followUp sql.NullTime
	if raw := strings.TrimSpace(p.FollowUpAt); raw != "" {
		if t, parsed := parseFlexibleDate(raw); parsed {
			followUp = sql.NullTime{Time: t, Valid: true}
		} else {
			s.logger.Warn("unparseable follow-up date, storing null",
				zap.String("follow_up_at", raw),
			)
		}
	}

	return &customer.Record{
		Queue:       queue,
		FirstName:   nullable(p.FirstName),
		LastName:    nullable(p.LastName),
		Phone:       nullable(phone),
		AltPhone:    nullable(altPhone),
		WhatsApp:    nullable(whatsapp),
		Email:       nullable(email),
		Address:     nullable(p.Address),
		Country:     nullable(p.Country),
		Designation: nullable(p.Designation),
		Disposition: disposition,
		Comment:     nullable(p.Comment),
		AgentName:   nullable(p.AgentName),
		Team:        nullable(p.Team),
		FollowUpAt:  followUp,
		Tags:        pq.StringArray(p.Tags),
	}, nil
}

func checkLength(field, value string) error {
	max, ok := maxFieldLengths[field]
	if !ok {
		return nil
	}
	if len(value) > max {
		return xerrors.NewFieldError(field, "exceeds maximum length of "+strconv.Itoa(max))
	}
	return nil
}

// normalizePhone strips separators and validates the digit count. A leading
// "+" is tolerated and not counted as a digit.
func normalizePhone(field, raw string) (string, error) {
	phone := strings.TrimSpace(raw)
	for _, r := range []string{" ", "-", "(", ")"} {
		phone = strings.ReplaceAll(phone, r, "")
	}
	if phone == "" {
		return "", nil
	}

	digits := 0
	for i, char := range phone {
		if i == 0 && char == '+' {
			continue
		}
		if char < '0' || char > '9' {
			return "", xerrors.NewFieldError(field, "must contain only digits")
		}
		digits++
	}
	if digits > maxPhoneDigits {
		return "", xerrors.NewFieldError(field, "exceeds "+strconv.Itoa(maxPhoneDigits)+" digits")
	}
	return phone, nil
}

// spreadsheet serial dates count days from 1899-12-30
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var dateLayouts = []string{
	"02/01/2006",
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// parseFlexibleDate accepts DD/MM/YYYY, ISO dates and timestamps, and
// spreadsheet serial numbers.
func parseFlexibleDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil && serial > 0 && serial < 200000 {
		days := int(serial)
		frac := serial - float64(days)
		return serialEpoch.AddDate(0, 0, days).Add(time.Duration(frac * 24 * float64(time.Hour))), true
	}
	return time.Time{}, false
}

func nullable(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
