package model

// Movie is a catalogue entry.  The service never writes movies.
type Movie struct {
	ID              uint64 `json:"id"`
	Title           string `json:"title"`
	MPAARating      string `json:"mpaa_rating"`
	Synopsis        string `json:"synopsis"`
	TrailerVideoURL string `json:"trailer_video_url"`
	TrailerImageURL string `json:"trailer_image_url"`
}
