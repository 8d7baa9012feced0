package detect

import "math"

// haversineKm returns the great-circle distance between two points in
// kilometres, grounded on pkg/location/clustering.go's
// calculateDistance (there expressed in metres over Earth radius
// 6,371,000 m; here in km for the speed calculations D10 and the
// anomaly model's feature vector need).
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0

	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// HaversineKm is the exported form, shared with pkg/anomaly's feature
// extraction (inter-sample distance/speed features).
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	return haversineKm(lat1, lon1, lat2, lon2)
}
