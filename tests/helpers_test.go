package tests_test

import (
	"fmt"
	"strings"

	"github.com/containerd/nerdctl/mod/tigron/test"
	"github.com/containerd/nerdctl/mod/tigron/tig"
)

// issueWindow is how many lines around "check: <name>" belong to the same issue entry.
const issueWindow = 2

// issueLines returns the lines surrounding each occurrence of the check in console output.
func issueLines(stdout, check string) [][]string {
	lines := strings.Split(stdout, "\n")
	needle := "check: " + check

	var blocks [][]string

	for idx, line := range lines {
		if strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-")) != needle {
			continue
		}

		blocks = append(blocks, lines[max(0, idx-issueWindow):min(len(lines), idx+issueWindow+1)])
	}

	return blocks
}

func blockHas(block []string, target string) bool {
	for _, line := range block {
		if strings.Contains(line, target) {
			return true
		}
	}

	return false
}

// expectIssueDetected verifies that the check ran and was flagged.
func expectIssueDetected(check string) test.Comparator {
	return func(stdout string, testing tig.T) {
		testing.Helper()

		for _, block := range issueLines(stdout, check) {
			if blockHas(block, "detected: true") {
				return
			}
		}

		testing.Log(fmt.Sprintf("expected %q to be detected:\n%s", check, stdout))
		testing.Fail()
	}
}

// expectNoIssue verifies that the check either did not run or ran without a finding.
func expectNoIssue(check string) test.Comparator {
	return func(stdout string, testing tig.T) {
		testing.Helper()

		for _, block := range issueLines(stdout, check) {
			if blockHas(block, "detected: true") {
				testing.Log(fmt.Sprintf("expected no finding for %q:\n%s", check, stdout))
				testing.Fail()
			}
		}
	}
}

// expectWorstSeverity verifies the summary's worst severity.
func expectWorstSeverity(severity string) test.Comparator {
	return expectContains("worst_severity: " + severity)
}

// expectContains verifies the output contains a substring.
func expectContains(substr string) test.Comparator {
	return func(stdout string, testing tig.T) {
		testing.Helper()

		if !strings.Contains(stdout, substr) {
			testing.Log(fmt.Sprintf("expected substring %q not found in output:\n%s", substr, stdout))
			testing.Fail()
		}
	}
}
