package controllers

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fadeclub/fadeclub_backend/models"
	"github.com/fadeclub/fadeclub_backend/repositories"
	"github.com/fadeclub/fadeclub_backend/utils"
)

type ReferralController struct {
	members repositories.MemberRepository
}

func NewReferralController(members repositories.MemberRepository) *ReferralController {
	return &ReferralController{members: members}
}

// GetReferralInfo returns the member's referral code, shareable link and a QR
// code for it. The QR code is a base64 data URI the app renders directly.
func (rc *ReferralController) GetReferralInfo(c echo.Context) error {
	member, err := utils.GetMemberFromToken(c, rc.members)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid token",
		})
	}

	info := models.ReferralInfo{
		ReferralCode:  member.ReferralCode,
		ReferralLink:  utils.ReferralLink(member.ReferralCode),
		ReferralCount: len(member.Referrals),
	}

	qrCode, err := utils.GenerateReferralQRCode(member.ReferralCode)
	if err != nil {
		log.Printf("Warning: QR generation failed for %s: %v", member.ID.Hex(), err)
	} else {
		info.QRCode = qrCode
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Referral info retrieved successfully",
		Data:    info,
	})
}
