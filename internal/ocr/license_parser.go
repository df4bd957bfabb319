package ocr

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"agri_inspection/internal/domain"
)

type licenseLabel struct {
	text  string
	field domain.OCRField
}

// licenseLabels are the printed captions of a farm-machinery driving license.
var licenseLabels = []licenseLabel{
	{"号牌号码", domain.FieldLicensePlateNumber},
	{"类型", domain.FieldVehicleType},
	{"所有人", domain.FieldOwner},
	{"住址", domain.FieldAddress},
	{"底盘号/机架号", domain.FieldChassisNumber},
	{"底盘号", domain.FieldChassisNumber},
	{"机架号", domain.FieldChassisNumber},
	{"挂车架号码", domain.FieldTrailerFrameNumber},
	{"发动机号码", domain.FieldEngineNumber},
	{"发动机号", domain.FieldEngineNumber},
	{"品牌", domain.FieldBrand},
	{"型号名称", domain.FieldModelName},
	{"型号", domain.FieldModelName},
	{"登记日期", domain.FieldRegistrationDate},
	{"发证日期", domain.FieldIssueDate},
	{"发证机关", domain.FieldIssueAuthority},

	{"拖拉机最小使用质量", domain.FieldTractorMinWeight},
	{"联合收割机质量", domain.FieldHarvesterWeight},
	{"拖拉机最大允许载质量", domain.FieldTractorMaxLoad},
	{"准乘人数", domain.FieldPassengerCapacity},
	{"外廓尺寸", domain.FieldOverallDimension},
	{"检验记录", domain.FieldInspectionRecord},
}

func init() {
	// longest caption first so "型号名称" wins over "型号"
	sort.SliceStable(licenseLabels, func(i, j int) bool {
		return utf8.RuneCountInString(licenseLabels[i].text) > utf8.RuneCountInString(licenseLabels[j].text)
	})
}

type labelHit struct {
	start, end int
	field      domain.OCRField
}

func findLabels(line string) []labelHit {
	var hits []labelHit
	overlaps := func(s, e int) bool {
		for _, h := range hits {
			if s < h.end && e > h.start {
				return true
			}
		}
		return false
	}
	for _, l := range licenseLabels {
		from := 0
		for {
			i := strings.Index(line[from:], l.text)
			if i < 0 {
				break
			}
			s := from + i
			e := s + len(l.text)
			if !overlaps(s, e) {
				hits = append(hits, labelHit{start: s, end: e, field: l.field})
			}
			from = e
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].start < hits[j].start })
	return hits
}

func cleanValue(s string) string {
	return strings.Trim(s, " \t:：|")
}

// ParseVehicleLicense extracts field values from the text lines of a license photo.
// A caption may share its line with the value or with other captions; a caption at
// the end of a line takes the next line as value when that line has no caption of its own.
func ParseVehicleLicense(lines []domain.TextLine) domain.VehicleLicense {
	values := make(map[domain.OCRField]string)
	set := func(f domain.OCRField, v string) {
		if v == "" {
			return
		}
		if _, ok := values[f]; !ok {
			values[f] = v
		}
	}

	var pending domain.OCRField
	for _, tl := range lines {
		line := strings.TrimSpace(tl.Text)
		hits := findLabels(line)

		if pending != "" {
			head := line
			if len(hits) > 0 {
				head = line[:hits[0].start]
			}
			set(pending, cleanValue(head))
			pending = ""
		}

		for i, h := range hits {
			end := len(line)
			if i+1 < len(hits) {
				end = hits[i+1].start
			}
			v := cleanValue(line[h.end:end])
			if v == "" && i == len(hits)-1 {
				if _, ok := values[h.field]; !ok {
					pending = h.field
				}
				continue
			}
			set(h.field, v)
		}
	}

	lic := domain.VehicleLicense{
		LicensePlateNumber: values[domain.FieldLicensePlateNumber],
		VehicleType:        values[domain.FieldVehicleType],
		Owner:              values[domain.FieldOwner],
		Address:            stripAddressPrefix(values[domain.FieldAddress]),
		ChassisNumber:      values[domain.FieldChassisNumber],
		TrailerFrameNumber: values[domain.FieldTrailerFrameNumber],
		EngineNumber:       values[domain.FieldEngineNumber],
		Brand:              values[domain.FieldBrand],
		ModelName:          values[domain.FieldModelName],
		RegistrationDate:   NormalizeDate(values[domain.FieldRegistrationDate]),
		IssueDate:          NormalizeDate(values[domain.FieldIssueDate]),
		IssueAuthority:     values[domain.FieldIssueAuthority],
		TractorMinWeight:   values[domain.FieldTractorMinWeight],
		HarvesterWeight:    values[domain.FieldHarvesterWeight],
		TractorMaxLoad:     values[domain.FieldTractorMaxLoad],
		PassengerCapacity:  values[domain.FieldPassengerCapacity],
		OverallDimension:   values[domain.FieldOverallDimension],
		InspectionRecord:   values[domain.FieldInspectionRecord],
	}
	if lic.LicensePlateNumber != "" {
		if p, ok := matchPlate(lic.LicensePlateNumber); ok {
			lic.LicensePlateNumber = p
		}
	}
	return lic
}

// stripAddressPrefix drops the document title the engines often glue onto the address,
// e.g. "中华人民共和国拖拉机和联合收割机行驶证".
func stripAddressPrefix(addr string) string {
	if i := strings.LastIndex(addr, "行驶证"); i >= 0 {
		return strings.TrimSpace(addr[i+len("行驶证"):])
	}
	return addr
}

var (
	separatedDate = regexp.MustCompile(`^(\d{4})\s*[年./\-]\s*(\d{1,2})\s*[月./\-]\s*(\d{1,2})\s*日?$`)
	compactDate   = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})$`)
)

// NormalizeDate rewrites a recognized date as YYYY-MM-DD. Values that do not
// form a real calendar date are returned unchanged.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	m := separatedDate.FindStringSubmatch(s)
	if m == nil {
		m = compactDate.FindStringSubmatch(s)
	}
	if m == nil {
		return s
	}
	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	d, _ := strconv.Atoi(m[3])
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != mo || t.Day() != d {
		return s
	}
	return t.Format(domain.DateLayout)
}
