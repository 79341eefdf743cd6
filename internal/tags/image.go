package tags

import "strings"

// imageKeyFolds maps ExifTool's namespaced keys onto the flat names the
// priority lists know about. First write wins, so EXIF beats PNG beats
// File for the same target.
var imageKeyFolds = [][2]string{
	{"EXIF:ImageWidth", "width"},
	{"EXIF:ExifImageWidth", "width"},
	{"PNG:ImageWidth", "width"},
	{"File:ImageWidth", "width"},
	{"EXIF:ImageHeight", "height"},
	{"EXIF:ExifImageHeight", "height"},
	{"PNG:ImageHeight", "height"},
	{"File:ImageHeight", "height"},
	{"EXIF:Orientation", "orientation"},
	{"EXIF:DateTimeOriginal", "date"},
	{"EXIF:CreateDate", "created_at"},
	{"XMP:CreateDate", "created_at"},
	{"EXIF:GPSLatitude", "gps_latitude"},
	{"EXIF:GPSLongitude", "gps_longitude"},
	{"Composite:GPSPosition", "gps_position"},
	{"EXIF:Artist", "artist"},
	{"XMP:Creator", "artist"},
	{"IPTC:By-line", "artist"},
	{"XMP:Title", "title"},
	{"IPTC:ObjectName", "title"},
	{"IPTC:Headline", "title"},
	{"XMP:Description", "description"},
	{"IPTC:Caption-Abstract", "description"},
	{"EXIF:ImageDescription", "description"},
	{"XMP:Subject", "tags"},
	{"IPTC:Keywords", "tags"},
	{"File:MIMEType", "mime_type"},
}

// sideways-rotated EXIF orientations where width and height swap
var rotatedOrientations = map[int64]bool{5: true, 6: true, 7: true, 8: true}

// MungeImageTags flattens ExifTool output into the common tag vocabulary.
// Namespaced keys fold onto flat names; the rest pass through unchanged so
// the extras bag still sees them.
func MungeImageTags(raw RawTags) RawTags {
	out := RawTags{}
	for k, v := range raw {
		out[k] = v
	}

	for _, fold := range imageKeyFolds {
		src, dst := fold[0], fold[1]
		v := lookupEither(raw, src)
		if v == nil || Stringify(v) == "" {
			continue
		}
		if _, taken := out[dst]; !taken {
			out[dst] = v
		}
		delete(out, src)
		delete(out, stripNamespace(src))
	}

	// Rotated images report sensor dimensions; swap so width/height match
	// what a viewer renders
	if rotatedOrientations[SafeInt(out["orientation"])] {
		out["width"], out["height"] = out["height"], out["width"]
	}

	// GPS halves combine into one loggable position
	if out["gps_position"] == nil {
		lat, lon := Stringify(out["gps_latitude"]), Stringify(out["gps_longitude"])
		if lat != "" && lon != "" {
			out["gps_position"] = lat + ", " + lon
		}
	}
	delete(out, "gps_latitude")
	delete(out, "gps_longitude")

	return out
}

// lookupEither tries the namespaced key and its bare suffix; ExifTool emits
// one or the other depending on the -G flag
func lookupEither(t RawTags, key string) any {
	if v, ok := t[key]; ok {
		return v
	}
	if v, ok := t[stripNamespace(key)]; ok {
		return v
	}
	return nil
}

func stripNamespace(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[i+1:]
	}
	return key
}
