package cppcheck

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleReport = `<?xml version="1.0" encoding="UTF-8"?>
<results version="2">
  <cppcheck version="2.13.0"/>
  <errors>
    <error id="nullPointer" severity="error" msg="Possible null pointer dereference: p">
      <location file="snippet.cpp" line="12"/>
    </error>
    <error id="unusedVariable" severity="style" msg="Unused variable: tmp">
      <location file="snippet.cpp" line="4"/>
    </error>
    <error id="missingIncludeSystem" severity="information" msg="Include file not found"/>
    <error id="passedByValue" severity="performance" msg="Parameter should be passed by const reference">
      <location file="snippet.cpp" line="7"/>
    </error>
  </errors>
</results>`

func TestParseReport(t *testing.T) {
	findings, err := ParseReport([]byte(sampleReport))
	require.NoError(t, err)
	require.Len(t, findings, 3)

	require.Equal(t, "nullPointer", findings[0].RuleID)
	require.Equal(t, "error", findings[0].Severity)
	require.NotNil(t, findings[0].Line)
	require.Equal(t, 12, *findings[0].Line)

	require.Equal(t, "unusedVariable", findings[1].RuleID)
	require.Equal(t, "style", findings[1].Severity)

	require.Equal(t, "passedByValue", findings[2].RuleID)
	require.Equal(t, "performance", findings[2].Severity)
}

func TestParseReportWithoutLocation(t *testing.T) {
	report := `<results version="2"><errors>
		<error id="syntaxError" severity="error" msg="Code 'something' is invalid syntax."/>
	</errors></results>`

	findings, err := ParseReport([]byte(report))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	require.Nil(t, findings[0].Line)
}

func TestParseReportEmpty(t *testing.T) {
	findings, err := ParseReport(nil)
	require.NoError(t, err)
	require.Empty(t, findings)
}

func TestParseReportMalformed(t *testing.T) {
	_, err := ParseReport([]byte("<results><errors>"))
	require.Error(t, err)
}
