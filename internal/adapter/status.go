package adapter

import (
	"strconv"

	"github.com/piwi3910/camweave/internal/camara"
)

// Reachability is the derived device-status answer.
type Reachability struct {
	Reachable    bool
	Connectivity []camara.ConnectivityType
}

// DeriveReachability maps a subscriber profile onto the CAMARA
// reachability answer:
//
//	DEREGISTERED, any connection, any sessions  -> unreachable, no connectivity
//	REGISTERED + CONNECTED with PDU sessions    -> reachable over DATA
//	REGISTERED + CONNECTED without PDU sessions -> reachable over SMS
//	REGISTERED + IDLE                           -> reachable over SMS
func DeriveReachability(profile *UEProfile) Reachability {
	if profile == nil || profile.RegistrationStatus == Deregistered {
		return Reachability{Reachable: false}
	}
	if profile.ConnectionStatus == Connected && profile.PduSessionCount > 0 {
		return Reachability{Reachable: true, Connectivity: []camara.ConnectivityType{camara.ConnectivityData}}
	}
	return Reachability{Reachable: true, Connectivity: []camara.ConnectivityType{camara.ConnectivitySMS}}
}

// Country describes the network operator's country for roaming answers.
type Country struct {
	Code int
	Name string
}

// mccCountries maps mobile country codes to countries. Unknown codes fall
// back to an UNKNOWN marker rather than failing the request.
var mccCountries = map[string]Country{
	"001": {Code: 999, Name: "Test Network"},
	"208": {Code: 33, Name: "France"},
	"310": {Code: 1, Name: "United States"},
	"311": {Code: 1, Name: "United States"},
	"234": {Code: 44, Name: "United Kingdom"},
	"262": {Code: 49, Name: "Germany"},
	"222": {Code: 39, Name: "Italy"},
	"214": {Code: 34, Name: "Spain"},
	"505": {Code: 61, Name: "Australia"},
	"440": {Code: 81, Name: "Japan"},
	"450": {Code: 82, Name: "South Korea"},
	"460": {Code: 86, Name: "China"},
}

// LookupCountry resolves a mobile country code.
func LookupCountry(mcc string) Country {
	if c, ok := mccCountries[mcc]; ok {
		return c
	}
	code, err := strconv.Atoi(mcc)
	if err != nil {
		code = 0
	}
	return Country{Code: code, Name: "Unknown"}
}

// DeriveRoaming compares the profile's serving PLMN against the home PLMN.
// A device on any other network is roaming.
func DeriveRoaming(profile *UEProfile, homeMcc, homeMnc string) (roaming bool, country Country) {
	if profile == nil || profile.Plmn == nil {
		return false, Country{}
	}
	roaming = profile.Plmn.Mcc != homeMcc || profile.Plmn.Mnc != homeMnc
	return roaming, LookupCountry(profile.Plmn.Mcc)
}
