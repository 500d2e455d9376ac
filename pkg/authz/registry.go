package authz

const (
	RoleTenantAdmin = "tenant-admin"
	RoleAnonymous   = "anonymous"
)

const (
	ActionRead  = "read"
	ActionAdmin = "admin"
)

const DomainGlobal = "global"

const (
	ObjectAskDBAsk           = "askdb.ask"
	ObjectAskDBConversations = "askdb.conversations"
	ObjectAskDBCatalog       = "askdb.catalog"
)
