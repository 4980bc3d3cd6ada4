package repository

import (
	"fmt"
	"strings"
	"testing"
)

func TestListTransitionsQueryOrdersByAppendSequence(t *testing.T) {
	query := fmt.Sprintf(listTransitionsQuery, 100, 0)
	if !strings.Contains(query, "ORDER BY seq ASC LIMIT 100 OFFSET 0") {
		t.Fatalf("history must be ordered by seq alone:\n%s", query)
	}
	if strings.Contains(query, "ORDER BY created_at") {
		t.Fatalf("history must not order by writer clock:\n%s", query)
	}
}
