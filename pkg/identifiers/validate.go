package identifiers

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid identifier")

const (
	MinLandSize = 0.01
	MaxLandSize = 100000.0

	// Zambia bounding box.
	MinLatitude  = -18.0
	MaxLatitude  = -8.0
	MinLongitude = 21.0
	MaxLongitude = 34.0
)

var (
	nrcExact      = regexp.MustCompile(`^\d{6}/\d{2}/\d$`)
	tpinExact     = regexp.MustCompile(`^[1-9]\d{9}$`)
	phoneExact    = regexp.MustCompile(`^\+260(?:95|96|97|76|77|75|78)\d{7}$`)
	emailExact    = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	passportExact = regexp.MustCompile(`^[A-Z0-9]{6,20}$`)
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// ValidateNRC checks the NNNNNN/DD/N layout and that the district code DD is
// between 01 and 72.
func ValidateNRC(nrc string) error {
	n := Normalize(KindNRC, nrc)
	if n == "" {
		return invalid("NRC is required")
	}
	if !nrcExact.MatchString(n) {
		return invalid("NRC %q must have the form 123456/12/1", nrc)
	}
	district, _ := strconv.Atoi(strings.Split(n, "/")[1])
	if district < 1 || district > 72 {
		return invalid("NRC district code %02d is outside 01-72", district)
	}
	return nil
}

// ValidateTPIN checks for ten digits without a leading zero. Numbers made of
// a single repeated digit are placeholders and rejected.
func ValidateTPIN(tpin string) error {
	n := Normalize(KindTPIN, tpin)
	if n == "" {
		return invalid("TPIN is required")
	}
	if !tpinExact.MatchString(n) {
		return invalid("TPIN %q must be 10 digits not starting with 0", tpin)
	}
	if strings.Count(n, n[:1]) == len(n) {
		return invalid("TPIN %q is a placeholder value", tpin)
	}
	return nil
}

// ValidatePhone accepts Zambian mobile numbers in local or international form.
func ValidatePhone(phone string) error {
	n := Normalize(KindPhone, phone)
	if n == "" {
		return invalid("phone number is required")
	}
	if !phoneExact.MatchString(n) {
		return invalid("phone %q is not a Zambian mobile number", phone)
	}
	return nil
}

// ValidateEmail checks the local@domain.tld shape.
func ValidateEmail(email string) error {
	n := Normalize(KindEmail, email)
	if n == "" {
		return invalid("email is required")
	}
	if !emailExact.MatchString(n) {
		return invalid("email %q is malformed", email)
	}
	return nil
}

// ValidatePassport checks 6 to 20 uppercase letters or digits.
func ValidatePassport(passport string) error {
	n := strings.ToUpper(strings.TrimSpace(passport))
	if !passportExact.MatchString(n) {
		return invalid("passport %q must be 6-20 letters or digits", passport)
	}
	return nil
}

// ValidateLandSize checks the declared size in hectares.
func ValidateLandSize(size float64) error {
	if size < MinLandSize || size > MaxLandSize {
		return invalid("land size %.2f must be between %.2f and %.0f hectares", size, MinLandSize, MaxLandSize)
	}
	return nil
}

// ValidateCoordinates checks that a point lies within Zambia.
func ValidateCoordinates(lat, lon float64) error {
	if lat < MinLatitude || lat > MaxLatitude {
		return invalid("latitude %.6f is outside %.0f..%.0f", lat, MinLatitude, MaxLatitude)
	}
	if lon < MinLongitude || lon > MaxLongitude {
		return invalid("longitude %.6f is outside %.0f..%.0f", lon, MinLongitude, MaxLongitude)
	}
	return nil
}

// ValidationErrors maps a field name to the reason it was rejected.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) Unwrap() error { return ErrInvalid }

// ApplicationFields are the applicant-supplied values checked before submission.
// Optional fields are only validated when non-empty.
type ApplicationFields struct {
	NRC       string   `json:"nrc"`
	TPIN      string   `json:"tpin,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	Email     string   `json:"email,omitempty"`
	Passport  string   `json:"passport,omitempty"`
	LandSize  *float64 `json:"landSize,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// ValidateApplication runs every applicable validator and returns nil or a
// ValidationErrors describing each rejected field.
func ValidateApplication(f ApplicationFields) error {
	errs := ValidationErrors{}
	check := func(field string, err error) {
		if err != nil {
			errs[field] = strings.TrimPrefix(err.Error(), ErrInvalid.Error()+": ")
		}
	}

	check("nrc", ValidateNRC(f.NRC))
	if strings.TrimSpace(f.TPIN) != "" {
		check("tpin", ValidateTPIN(f.TPIN))
	}
	if strings.TrimSpace(f.Phone) != "" {
		check("phone", ValidatePhone(f.Phone))
	}
	if strings.TrimSpace(f.Email) != "" {
		check("email", ValidateEmail(f.Email))
	}
	if strings.TrimSpace(f.Passport) != "" {
		check("passport", ValidatePassport(f.Passport))
	}
	if f.LandSize != nil {
		check("landSize", ValidateLandSize(*f.LandSize))
	}
	if f.Latitude != nil && f.Longitude != nil {
		check("coordinates", ValidateCoordinates(*f.Latitude, *f.Longitude))
	} else if f.Latitude != nil || f.Longitude != nil {
		errs["coordinates"] = "latitude and longitude must be given together"
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}
