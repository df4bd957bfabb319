package ocr

import (
	"regexp"
	"strings"

	"agri_inspection/internal/domain"
)

const provinces = "京津沪渝冀豫云辽黑湘皖鲁新苏浙赣鄂桂甘晋蒙陕吉闽贵粤青藏川宁琼"

var (
	// 鲁·13-12345, the tractor and harvester format
	agriPlate = regexp.MustCompile(`([` + provinces + `])[·•.\-]?(\d{2})-?(\d{5})`)
	// 京A12345, 粤B12345D (new energy)
	roadPlate = regexp.MustCompile(`[` + provinces + `][A-Z][A-Z0-9]{5,6}`)

	plateSeparators = strings.NewReplacer(" ", "", "·", "", "•", "", ".", "", "-", "")
)

func matchPlate(text string) (string, bool) {
	compact := strings.ToUpper(strings.ReplaceAll(text, " ", ""))
	if m := agriPlate.FindStringSubmatch(compact); m != nil {
		return m[1] + "·" + m[2] + "-" + m[3], true
	}
	if p := roadPlate.FindString(plateSeparators.Replace(compact)); p != "" {
		return p, true
	}
	return "", false
}

// ExtractPlate picks the most confident plate number among the lines.
func ExtractPlate(lines []domain.TextLine) (domain.PlateResult, bool) {
	var best domain.PlateResult
	found := false
	for _, l := range lines {
		p, ok := matchPlate(l.Text)
		if !ok {
			continue
		}
		if !found || l.Confidence > best.Confidence {
			best = domain.PlateResult{Plate: p, Confidence: l.Confidence}
			found = true
		}
	}
	return best, found
}
