package arxiv

import (
	"fmt"
	"strings"
	"time"
)

// DayQuery builds the search_query expression selecting papers in the
// given categories submitted on a single day:
//
//	(cat:cs.AI OR cat:cs.LG) AND submittedDate:[YYYYMMDD0000 TO YYYYMMDD2359]
func DayQuery(categories []string, day time.Time) string {
	if len(categories) == 0 {
		categories = DefaultCategories
	}

	terms := make([]string, len(categories))
	for i, c := range categories {
		terms[i] = "cat:" + c
	}

	stamp := day.Format("20060102")
	return fmt.Sprintf("(%s) AND submittedDate:[%s0000 TO %s2359]",
		strings.Join(terms, " OR "), stamp, stamp)
}
