package controllers

import (
	trepos "tenant-onboarding-backend/tenants/repositories"
)

type TenantController struct {
	TenantRepo trepos.TenantRepository
}
