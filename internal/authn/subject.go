package authn

import (
	"fmt"
	"strconv"
)

func parseSubjectID(subject string) (int64, error) {
	id, err := strconv.ParseInt(subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("non-numeric subject %q", subject)
	}
	return id, nil
}

func formatSubjectID(id int64) string {
	return strconv.FormatInt(id, 10)
}
