package utils

import (
	"fmt"
	"math"
	"road-editor/model"
)

// EarthRadius WGS84 参考椭球长半轴 (米)
const EarthRadius = 6378137.0

// DegreesToRadians 角度转弧度
func DegreesToRadians(d float64) float64 {
	return d * math.Pi / 180.0
}

// RadiansToDegrees 弧度转角度
func RadiansToDegrees(r float64) float64 {
	return r * 180.0 / math.Pi
}

// HaversineDistance Haversine 公式 (直接计算两点间球面距离)
// 精度：高，适用于全球范围
func HaversineDistance(p1, p2 model.Origin) float64 {
	lat1 := DegreesToRadians(p1.Lat)
	lon1 := DegreesToRadians(p1.Lon)
	lat2 := DegreesToRadians(p2.Lat)
	lon2 := DegreesToRadians(p2.Lon)

	dLat := lat2 - lat1
	dLon := lon2 - lon1
	// a = sin²(Δlat/2) + cos(lat1) * cos(lat2) * sin²(Δlon/2)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	// c = 2 * atan2(√a, √(1-a))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * c
}

// LocalToGeo 本地平面坐标 (米, x 向东 y 向北) 转经纬度
// 使用原点处的等距圆柱近似, 适用于几公里范围内的路网
func LocalToGeo(origin model.Origin, x, y float64) model.Origin {
	lat0 := DegreesToRadians(origin.Lat)
	return model.Origin{
		Lat: origin.Lat + RadiansToDegrees(y/EarthRadius),
		Lon: origin.Lon + RadiansToDegrees(x/(EarthRadius*math.Cos(lat0))),
	}
}

// GeoToLocal LocalToGeo 的逆变换
func GeoToLocal(origin model.Origin, p model.Origin) (x, y float64) {
	lat0 := DegreesToRadians(origin.Lat)
	y = DegreesToRadians(p.Lat-origin.Lat) * EarthRadius
	x = DegreesToRadians(p.Lon-origin.Lon) * EarthRadius * math.Cos(lat0)
	return x, y
}

// TransverseMercator 生成以 origin 为中心的横轴墨卡托 PROJ 字符串
func TransverseMercator(origin model.Origin) string {
	return fmt.Sprintf("+proj=tmerc +lat_0=%.10g +lon_0=%.10g +k=1 +x_0=0 +y_0=0 +ellps=WGS84 +units=m +no_defs",
		origin.Lat, origin.Lon)
}
