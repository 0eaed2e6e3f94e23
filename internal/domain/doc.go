// Package domain models reconnaissance aircraft telemetry (IWG1) and the
// High Density Observation (HDOB) records derived from it.
//
// # Data Source
//
// IWG1 is the NASA/NCAR airborne interchange packet: one comma-separated
// line per second, prefixed with the literal "IWG1". Flight logs are
// archived as plain text (sometimes gzip, zstd, or lz4 compressed) and are
// read wholesale before conversion starts.
//
// # IWG1 Conventions
//
// Column layout (index 0 is the "IWG1" tag):
//
//	1  Date_Time      e.g. "2024-09-26T15:10:00" or "20240926T151000.5"
//	2  Lat            decimal degrees, signed (south negative)
//	3  Lon            decimal degrees, signed (west negative)
//	4  GPS_MSL_Alt    metres
//	5  WGS_84_Alt     metres (fallback when GPS MSL altitude is blank)
//	6  Press_Alt      metres
//	20 Ambient_Temp   °C
//	21 Dew_Point      °C
//	23 Static_Press   hPa
//	26 Wind_Speed     m/s
//	27 Wind_Dir       degrees true, direction the wind blows from
//
// Unknown values:
//
//	Blank cells and the tokens "nan" / "inf" mean the instrument reported
//	nothing. They become nil fields, never zero, so a calm wind and a failed
//	anemometer stay distinguishable all the way to the HDOB line.
//
// Position and time are mandatory. A line without them is rejected by the
// parser; the remaining fields are optional.
//
// # HDOB Conventions
//
// Each HDOB data line is 13 space-separated fixed-width fields:
//
//	hhmmss LLLLH NNNNNH PPPP GGGGG XXXX sTTT sddd wwwSSS MMM KKK ppp FF
//
// Missing data is written as slashes repeated to the field width ("////"
// for PPPP, "//////" for wwwSSS). Lines are framed into messages with a WMO
// header ("URNT15 KNHC ddhhmm"), a mission line, and a "$$" trailer. The
// header ddhhmm is the time of the last observation in that message, not the
// interval midpoint that recon10s writes.
//
// # Time Buckets
//
// Buckets are half-open [start, start+width) intervals aligned to the Unix
// epoch, so a 30 s width yields boundaries at :00 and :30 of every minute.
// One representative record is chosen per non-empty bucket; empty buckets
// produce nothing.
package domain
