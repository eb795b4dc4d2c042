package types

import "sort"

// SortInstances orders instances for display: running instances first,
// then by launch time ascending. The sort is stable so repeated calls on
// the same listing produce identical output.
func SortInstances(instances []Instance) {
	sort.SliceStable(instances, func(i, j int) bool {
		ri, rj := instances[i].Running(), instances[j].Running()
		if ri != rj {
			return ri
		}
		return instances[i].LaunchTime.Before(instances[j].LaunchTime)
	})
}

// SpotLaunchRequest carries the parameters of a spot bid. AMI may be an
// image id or an image name; the orchestrator substitutes the id.
type SpotLaunchRequest struct {
	AMI           string            `json:"ami"`
	InstanceType  string            `json:"instance_type"`
	KeyName       string            `json:"key_name"`
	SecurityGroup string            `json:"security_group"`
	Price         float64           `json:"price"`
	Tags          map[string]string `json:"tags"`
	UserData      string            `json:"user_data,omitempty"`
}

// RunRequest carries the parameters of an on-demand launch.
type RunRequest struct {
	AMI           string            `json:"ami"`
	InstanceType  string            `json:"instance_type"`
	KeyName       string            `json:"key_name"`
	SecurityGroup string            `json:"security_group"`
	Tags          map[string]string `json:"tags"`
	UserData      string            `json:"user_data,omitempty"`
}

// PriceRow is one line of the price table: the catalog join of a type,
// its family, observed prices and live spot price. Absent prices are nil.
type PriceRow struct {
	InstanceType string   `json:"instance_type"`
	FamilyName   string   `json:"family_name"`
	FamilyType   string   `json:"family_type"`
	DataURL      string   `json:"data_url,omitempty"`
	NCPU         int      `json:"n_cpu"`
	MemoryGiB    float64  `json:"memory_gib"`
	OnDemand     *float64 `json:"ondemand,omitempty"`
	Spot         *float64 `json:"spot,omitempty"`
	Reserved     *float64 `json:"reserved,omitempty"`
}
