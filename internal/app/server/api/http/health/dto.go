package health

// Input represents the input for health check endpoint
type Input struct{}

// Output represents the output for health check endpoint
type Output struct {
	Body Response
}

// Response represents the health check response
type Response struct {
	Status   string `json:"status" example:"OK" doc:"Health status of the service"`
	Remote   string `json:"remote" example:"online" enum:"online,offline" doc:"Remote store availability"`
	DeviceID string `json:"device_id" example:"laptop" doc:"Identifier of this device"`
}
