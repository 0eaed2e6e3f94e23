package hdob

import (
	"bytes"
	"testing"
	"time"

	"github.com/couchcryptid/recon-hdob/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeRecords() []domain.HDOBRecord {
	base := time.Date(2024, 9, 26, 15, 10, 0, 0, time.UTC)
	return []domain.HDOBRecord{
		{Time: base, Line: "L1"},
		{Time: base.Add(30 * time.Second), Line: "L2"},
		{Time: base.Add(60 * time.Second), Line: "L3"},
	}
}

func TestWriteMessages_Framing(t *testing.T) {
	opts := DefaultMessageOptions()
	opts.Mission = "AFXXX 1309A HELENE"
	opts.LinesPerMessage = 2

	var buf bytes.Buffer
	require.NoError(t, WriteMessages(&buf, threeRecords(), opts))

	want := "URNT15 KNHC 261510\n" +
		"AFXXX 1309A HELENE HDOB 01 20240926\n" +
		"L1\nL2\n$$\n" +
		"\n" +
		"URNT15 KNHC 261511\n" +
		"AFXXX 1309A HELENE HDOB 02 20240926\n" +
		"L3\n$$\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteMessages_DefaultsAndStormDate(t *testing.T) {
	opts := MessageOptions{StormDate: time.Date(2024, 9, 25, 0, 0, 0, 0, time.UTC)}
	got := FormatMessages(threeRecords(), opts)

	want := "URNT15 KNHC 261511\n" +
		"AFXXX 0000A INVEST HDOB 01 20240925\n" +
		"L1\nL2\nL3\n$$\n"
	assert.Equal(t, want, got)
}

func TestWriteMessages_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessages(&buf, nil, DefaultMessageOptions()))
	assert.Empty(t, buf.String())
}

func TestWriteRaw(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRaw(&buf, threeRecords()))
	assert.Equal(t, "L1\nL2\nL3\n", buf.String())
}

func TestMissionFromName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"data/20240926I1_1309A_Helene.txt", "AFXXX 1309A HELENE"},
		{"https://example.org/iwg1/0512B_milton.txt.gz?raw=1", "AFXXX 0512B MILTON"},
		{`C:\flights\0203A Ian.iwg1`, "AFXXX 0203A IAN"},
		{"flight_0512C_milton.txt", DefaultMission},
		{"1309A.txt", DefaultMission},
		{"", DefaultMission},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MissionFromName(tc.name, DefaultMission))
		})
	}
}
