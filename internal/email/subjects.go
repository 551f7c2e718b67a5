package email

const subjectLinkCode = "Your FleetDesk verification code"
