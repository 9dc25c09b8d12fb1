package tierpolicy

import "github.com/fabianmarian8/sentinel-sub000/internal/models"

// OverrideFromProfile builds an Override from a FetchProfile's typed
// override fields plus its freeform tierPolicyOverrides bag.
func OverrideFromProfile(profile models.FetchProfile) Override {
	override := Override{
		PreferredProvider: profile.PreferredProvider,
		GeoCountry:        profile.GeoCountry,
	}
	if len(profile.DisabledProviders) > 0 {
		override.DisabledProviders = profile.DisabledProviders
	}
	if profile.StopAfterPreferredFailure {
		v := true
		override.StopAfterPreferredFailure = &v
	}

	if raw, ok := profile.TierPolicyOverrides["allowPaid"]; ok {
		if b, ok := raw.(bool); ok {
			override.AllowPaid = &b
		}
	}
	if raw, ok := profile.TierPolicyOverrides["timeoutMs"]; ok {
		if f, ok := raw.(float64); ok {
			v := int(f)
			override.TimeoutMs = &v
		}
	}
	if raw, ok := profile.TierPolicyOverrides["sloTarget"]; ok {
		if f, ok := raw.(float64); ok {
			override.SLOTarget = &f
		}
	}

	return override
}
